package domain

// RankedIdentifier is a position in a ranking source's ordered output.
type RankedIdentifier struct {
	ID   int64 `json:"id"`
	Rank int   `json:"rank"`
}

// ResolvedRecord is a lookup result normalised at the resolver boundary.
// Optional upstream fields are pointers (or nil slices) so a missing value is
// never confused with a zero value.
type ResolvedRecord struct {
	ID               int64
	Name             string
	Creator          string
	CreatorID        int64
	Category         string
	RatingAverage    *float64
	RatingCount      *int64
	Price            *float64
	ArtworkURL       string
	ArtworkLargeURL  string
	StoreURL         string
	Description      *string
	ReleaseNotes     *string
	Version          *string
	ReleaseDate      *string
	SizeBytes        *int64
	ContentRating    *string
	Languages        []string
	Screenshots      []string
	IPadScreenshots  []string
	SupportedDevices []string
	MinimumOSVersion *string
	BundleID         *string
}

// AppSummary is the list-view projection of a record.
type AppSummary struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	ArtistName  string   `json:"artistName"`
	ArtistID    int64    `json:"artistId"`
	Genre       string   `json:"genre"`
	Rating      *float64 `json:"rating"`
	RatingCount *int64   `json:"ratingCount"`
	Price       *float64 `json:"price"`
	Artwork     string   `json:"artwork"`
	URL         string   `json:"url"`
	Description *string  `json:"description,omitempty"`
}

// AppDetails is the full single-app projection.
type AppDetails struct {
	AppSummary
	ReleaseNotes     *string  `json:"releaseNotes"`
	Version          *string  `json:"version"`
	ReleaseDate      *string  `json:"releaseDate"`
	Size             *int64   `json:"size"`
	ContentRating    *string  `json:"contentRating"`
	Languages        []string `json:"languages"`
	Screenshots      []string `json:"screenshots"`
	IPadScreenshots  []string `json:"ipadScreenshots"`
	SupportedDevices []string `json:"supportedDevices"`
	MinimumOSVersion *string  `json:"minimumOsVersion"`
	BundleID         *string  `json:"bundleId"`
}

// EnrichedRecord is a ranked chart entry, optionally carrying overlay data.
type EnrichedRecord struct {
	AppSummary
	Rank    int          `json:"rank"`
	Overlay *OverlayData `json:"overlay,omitempty"`
}

// OverlayData is third-party analytics attached to a ranked record.
type OverlayData struct {
	Downloads   *float64 `json:"downloads"`
	Revenue     *float64 `json:"revenue"`
	RevenueUnit string   `json:"revenueUnit"`
	Error       string   `json:"error,omitempty"`
}

const DefaultRevenueUnit = "USD"

// FailedOverlay is the degraded value substituted when an overlay fetch fails.
func FailedOverlay(err error) OverlayData {
	out := OverlayData{RevenueUnit: DefaultRevenueUnit}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (r ResolvedRecord) Summary() AppSummary {
	return AppSummary{
		ID:          r.ID,
		Name:        r.Name,
		ArtistName:  r.Creator,
		ArtistID:    r.CreatorID,
		Genre:       r.Category,
		Rating:      r.RatingAverage,
		RatingCount: r.RatingCount,
		Price:       r.Price,
		Artwork:     r.ArtworkURL,
		URL:         r.StoreURL,
	}
}

// SearchSummary is Summary plus the description, which search listings show.
func (r ResolvedRecord) SearchSummary() AppSummary {
	summary := r.Summary()
	summary.Description = r.Description
	return summary
}

func (r ResolvedRecord) Details() AppDetails {
	summary := r.SearchSummary()
	if r.ArtworkLargeURL != "" {
		summary.Artwork = r.ArtworkLargeURL
	}
	return AppDetails{
		AppSummary:       summary,
		ReleaseNotes:     r.ReleaseNotes,
		Version:          r.Version,
		ReleaseDate:      r.ReleaseDate,
		Size:             r.SizeBytes,
		ContentRating:    r.ContentRating,
		Languages:        r.Languages,
		Screenshots:      r.Screenshots,
		IPadScreenshots:  r.IPadScreenshots,
		SupportedDevices: r.SupportedDevices,
		MinimumOSVersion: r.MinimumOSVersion,
		BundleID:         r.BundleID,
	}
}
