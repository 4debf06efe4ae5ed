package itunes

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"appcharts/chartservice/internal/domain"
	"appcharts/chartservice/internal/providers/common"
)

const searchLimit = 200

// LookupClient resolves ids through the bulk lookup API.
type LookupClient struct {
	client
}

func NewLookupClient(cfg Config) *LookupClient {
	return &LookupClient{client: newClient(cfg)}
}

func (c *LookupClient) Name() string { return "itunes-lookup" }

func (c *LookupClient) Lookup(ctx context.Context, ids []int64, country string) ([]domain.ResolvedRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	params := url.Values{}
	params.Set("id", strings.Join(parts, ","))
	params.Set("country", countryParam(country))
	params.Set("entity", "software")

	payload, err := c.requester(c.Name()).GetJSON(ctx, c.baseURL+lookupPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return parseResults(payload), nil
}

// SearchClient queries the search API. It always asks for the provider
// maximum and leaves pagination to the caller.
type SearchClient struct {
	client
}

func NewSearchClient(cfg Config) *SearchClient {
	return &SearchClient{client: newClient(cfg)}
}

func (c *SearchClient) Name() string { return "itunes-search" }

func (c *SearchClient) Search(ctx context.Context, query domain.SearchQuery) ([]domain.ResolvedRecord, error) {
	params := url.Values{}
	params.Set("term", strings.TrimSpace(query.Term))
	params.Set("country", countryParam(query.Country))
	params.Set("entity", "software")
	params.Set("limit", strconv.Itoa(searchLimit))
	if lang, ok, err := SearchLanguage(query.Language); err != nil {
		return nil, err
	} else if ok {
		params.Set("lang", lang)
	}

	payload, err := c.requester(c.Name()).GetJSON(ctx, c.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return parseResults(payload), nil
}

// SearchLanguage canonicalises a BCP 47 tag into the search API's
// "en_us" form. An empty tag is not an error and yields ok=false.
func SearchLanguage(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false, &invalidLanguageError{value: raw, err: err}
	}
	base, _ := tag.Base()
	value := base.String()
	if region, confidence := tag.Region(); confidence == language.Exact {
		value += "_" + region.String()
	}
	return strings.ToLower(value), true, nil
}

type invalidLanguageError struct {
	value string
	err   error
}

func (e *invalidLanguageError) Error() string {
	return domain.ErrInvalidRequest.Error() + ": invalid language " + strconv.Quote(e.value)
}

func (e *invalidLanguageError) Unwrap() []error {
	return []error{domain.ErrInvalidRequest, e.err}
}

func countryParam(country string) string {
	value := strings.ToUpper(strings.TrimSpace(country))
	if value == "" {
		return "US"
	}
	return value
}

// parseResults normalises the lookup/search "results" array. Entries without
// a positive trackId are dropped here, so they count as unresolved.
func parseResults(payload []byte) []domain.ResolvedRecord {
	results := gjson.GetBytes(payload, "results")
	if !results.IsArray() {
		return nil
	}
	items := results.Array()
	out := make([]domain.ResolvedRecord, 0, len(items))
	for _, item := range items {
		record, ok := toRecord(item)
		if !ok {
			continue
		}
		out = append(out, record)
	}
	return out
}

func toRecord(item gjson.Result) (domain.ResolvedRecord, bool) {
	id, ok := common.ParseID(item.Get("trackId"))
	if !ok {
		return domain.ResolvedRecord{}, false
	}
	creatorID, _ := common.ParseID(item.Get("artistId"))
	return domain.ResolvedRecord{
		ID:               id,
		Name:             item.Get("trackName").String(),
		Creator:          item.Get("artistName").String(),
		CreatorID:        creatorID,
		Category:         item.Get("primaryGenreName").String(),
		RatingAverage:    common.OptionalFloat(item.Get("averageUserRating")),
		RatingCount:      common.OptionalInt(item.Get("userRatingCount")),
		Price:            common.OptionalFloat(item.Get("price")),
		ArtworkURL:       item.Get("artworkUrl100").String(),
		ArtworkLargeURL:  item.Get("artworkUrl512").String(),
		StoreURL:         item.Get("trackViewUrl").String(),
		Description:      common.OptionalString(item.Get("description")),
		ReleaseNotes:     common.OptionalString(item.Get("releaseNotes")),
		Version:          common.OptionalString(item.Get("version")),
		ReleaseDate:      common.OptionalString(item.Get("currentVersionReleaseDate")),
		SizeBytes:        common.OptionalInt(item.Get("fileSizeBytes")),
		ContentRating:    common.OptionalString(item.Get("contentAdvisoryRating")),
		Languages:        common.Strings(item.Get("languageCodesISO2A")),
		Screenshots:      common.Strings(item.Get("screenshotUrls")),
		IPadScreenshots:  common.Strings(item.Get("ipadScreenshotUrls")),
		SupportedDevices: common.Strings(item.Get("supportedDevices")),
		MinimumOSVersion: common.OptionalString(item.Get("minimumOsVersion")),
		BundleID:         common.OptionalString(item.Get("bundleId")),
	}, true
}
