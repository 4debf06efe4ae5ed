package charts

import "appcharts/chartservice/internal/domain"

// Paginate slices items by offset/limit and computes continuation state.
//
// totalAvailable is the size of the list before resolution; ceiling is the
// most entries the resolver will ever produce, so hasMore never points past
// what a later request could actually return. The returned slice is a copy.
func Paginate[T any](items []T, page domain.PageRequest, totalAvailable, ceiling int) ([]T, domain.Pagination) {
	start := max(0, page.Offset)
	if start > len(items) {
		start = len(items)
	}
	// Clamp before adding so a huge limit cannot overflow.
	end := start + min(max(0, page.Limit), len(items)-start)

	out := make([]T, end-start)
	copy(out, items[start:end])

	reachable := totalAvailable
	if ceiling > 0 && ceiling < reachable {
		reachable = ceiling
	}
	currentEnd := page.Offset + len(out)
	// Unlike a plain offset check, an empty page never reports more, so a
	// client cannot loop past the last resolved record.
	hasMore := len(out) > 0 && currentEnd < reachable

	pagination := domain.Pagination{
		Total:          len(items),
		TotalAvailable: totalAvailable,
		Limit:          page.Limit,
		Offset:         page.Offset,
		HasMore:        hasMore,
	}
	if hasMore {
		next := currentEnd
		pagination.NextOffset = &next
	}
	return out, pagination
}
