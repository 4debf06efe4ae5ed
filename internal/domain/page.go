package domain

type PageRequest struct {
	Offset int
	Limit  int
}

// Pagination is the continuation state returned with every page.
type Pagination struct {
	Total          int  `json:"total"`
	TotalAvailable int  `json:"totalAvailable"`
	Limit          int  `json:"limit"`
	Offset         int  `json:"offset"`
	HasMore        bool `json:"hasMore"`
	NextOffset     *int `json:"nextOffset"`
}

// PageCursor tracks "load more" position for one logical list. It is a plain
// value: callers keep it and pass it back rather than relying on shared state.
type PageCursor struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func NewPageCursor(limit int) PageCursor {
	return PageCursor{Limit: limit}
}

func (c PageCursor) Request() PageRequest {
	return PageRequest{Offset: c.Offset, Limit: c.Limit}
}

// Next returns the cursor for the following page and whether one exists.
func (c PageCursor) Next(p Pagination) (PageCursor, bool) {
	if !p.HasMore || p.NextOffset == nil {
		return c, false
	}
	return PageCursor{Offset: *p.NextOffset, Limit: c.Limit}, true
}

// ChartPage is a reconciled, paginated, optionally enriched chart slice.
type ChartPage struct {
	Items      []EnrichedRecord `json:"apps"`
	Pagination Pagination       `json:"pagination"`
}

type SearchPage struct {
	Items      []AppSummary `json:"apps"`
	Pagination Pagination   `json:"pagination"`
}
