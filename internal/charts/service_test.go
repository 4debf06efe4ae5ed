package charts

import (
	"context"
	"errors"
	"testing"
	"time"

	"appcharts/chartservice/internal/domain"
)

func newTestService(lookup LookupClient, opts ...ServiceOption) *Service {
	base := []ServiceOption{
		WithResolverConfig(ResolverConfig{Wait: noWait}),
		WithRetryConfig(RetryConfig{MaxAttempts: 1}),
	}
	return NewService(lookup, time.Second, append(base, opts...)...)
}

func TestChartPipelineReconcilesAndPaginates(t *testing.T) {
	source := &fakeIdentifierSource{ids: []int64{10, 20, 30, 40}}
	lookup := &fakeLookup{missing: map[int64]bool{20: true}}
	service := newTestService(lookup, WithIdentifierSource(domain.ChartVariantV2, source))

	page, err := service.Chart(context.Background(), ChartRequest{
		Variant: domain.ChartVariantV2,
		Query:   domain.RankingQuery{Category: "topfreeapplications", Genre: 36, Region: "us"},
		Page:    domain.PageRequest{Offset: 0, Limit: 2},
	})
	if err != nil {
		t.Fatalf("chart error: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != 10 || page.Items[1].ID != 30 {
		t.Fatalf("unexpected items: %+v", page.Items)
	}
	if page.Items[1].Rank != 3 {
		t.Fatalf("expected source rank 3, got %d", page.Items[1].Rank)
	}
	if !page.Pagination.HasMore || page.Pagination.NextOffset == nil || *page.Pagination.NextOffset != 2 {
		t.Fatalf("unexpected pagination: %+v", page.Pagination)
	}
	if page.Pagination.Total != 3 || page.Pagination.TotalAvailable != 4 {
		t.Fatalf("unexpected totals: %+v", page.Pagination)
	}
}

func TestChartInvalidCategorySkipsUpstream(t *testing.T) {
	source := &fakeIdentifierSource{invalid: true}
	lookup := &fakeLookup{}
	service := newTestService(lookup, WithIdentifierSource(domain.ChartVariantV2, source))

	_, err := service.Chart(context.Background(), ChartRequest{
		Variant: domain.ChartVariantV2,
		Query:   domain.RankingQuery{Category: "Bogus"},
		Page:    domain.PageRequest{Limit: 25},
	})
	if !errors.Is(err, domain.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if source.hits.Load() != 0 || lookup.batchCount() != 0 {
		t.Fatal("no upstream call expected")
	}
}

func TestChartUnknownVariant(t *testing.T) {
	service := newTestService(&fakeLookup{})

	_, err := service.Chart(context.Background(), ChartRequest{
		Variant: domain.ChartVariantLegacy,
		Page:    domain.PageRequest{Limit: 20},
	})
	if !errors.Is(err, ErrUnsupportedVariant) {
		t.Fatalf("expected ErrUnsupportedVariant, got %v", err)
	}
}

func TestChartRejectsBadPage(t *testing.T) {
	source := &fakeIdentifierSource{ids: []int64{1}}
	service := newTestService(&fakeLookup{}, WithIdentifierSource(domain.ChartVariantV2, source))

	for _, page := range []domain.PageRequest{{Limit: 0}, {Limit: 5, Offset: -1}} {
		_, err := service.Chart(context.Background(), ChartRequest{Variant: domain.ChartVariantV2, Page: page})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("page %+v: expected ErrInvalidRequest, got %v", page, err)
		}
	}
}

func TestChartResolvesOnlyCeilingPrefix(t *testing.T) {
	source := &fakeIdentifierSource{ids: sequentialIDs(300)}
	lookup := &fakeLookup{}
	service := newTestService(lookup, WithIdentifierSource(domain.ChartVariantV2, source))

	page, err := service.Chart(context.Background(), ChartRequest{
		Variant: domain.ChartVariantV2,
		Page:    domain.PageRequest{Offset: 180, Limit: 20},
	})
	if err != nil {
		t.Fatalf("chart error: %v", err)
	}
	if lookup.batchCount() != 4 {
		t.Fatalf("expected 4 batches, got %d", lookup.batchCount())
	}
	if len(page.Items) != 20 || page.Pagination.HasMore {
		t.Fatalf("expected final reachable page, got %d items hasMore=%v", len(page.Items), page.Pagination.HasMore)
	}
	if page.Pagination.TotalAvailable != 300 {
		t.Fatalf("expected totalAvailable 300, got %d", page.Pagination.TotalAvailable)
	}
}

func TestChartOverlayWindowUsesSourceRank(t *testing.T) {
	source := &fakeIdentifierSource{ids: sequentialIDs(200)}
	overlay := &fakeOverlay{failFor: map[int64]bool{197: true}}
	service := newTestService(&fakeLookup{},
		WithIdentifierSource(domain.ChartVariantV2, source),
		WithOverlaySource(overlay, 4),
	)

	page, err := service.Chart(context.Background(), ChartRequest{
		Variant: domain.ChartVariantV2,
		Page:    domain.PageRequest{Offset: 190, Limit: 10},
	})
	if err != nil {
		t.Fatalf("chart error: %v", err)
	}
	for _, item := range page.Items {
		if item.Rank < 195 && item.Overlay != nil {
			t.Fatalf("rank %d: unexpected overlay", item.Rank)
		}
		if item.Rank >= 195 && item.Overlay == nil {
			t.Fatalf("rank %d: expected overlay", item.Rank)
		}
	}
	if overlay.calls.Load() != 6 {
		t.Fatalf("expected 6 overlay calls, got %d", overlay.calls.Load())
	}
}

func TestChartOverlayDisabledAtRuntime(t *testing.T) {
	source := &fakeIdentifierSource{ids: sequentialIDs(200)}
	overlay := &fakeOverlay{}
	settings := NewSettingsService(EngineSettings{OverlayEnabled: false, OverlayWindow: RankWindow{From: 1, To: 200}}, nil)
	service := newTestService(&fakeLookup{},
		WithIdentifierSource(domain.ChartVariantV2, source),
		WithOverlaySource(overlay, 4),
		WithSettings(settings),
	)

	if _, err := service.Chart(context.Background(), ChartRequest{
		Variant: domain.ChartVariantV2,
		Page:    domain.PageRequest{Limit: 50},
	}); err != nil {
		t.Fatalf("chart error: %v", err)
	}
	if overlay.calls.Load() != 0 {
		t.Fatal("overlay disabled, expected no calls")
	}
}

func TestChartRankingFailureIsReported(t *testing.T) {
	source := &fakeIdentifierSource{err: &domain.UpstreamError{Provider: "ranking", StatusCode: 502}}
	service := newTestService(&fakeLookup{}, WithIdentifierSource(domain.ChartVariantV2, source))

	_, err := service.Chart(context.Background(), ChartRequest{Variant: domain.ChartVariantV2, Page: domain.PageRequest{Limit: 5}})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	diagnostics := service.ProviderDiagnostics()
	found := false
	for _, item := range diagnostics {
		if item.Name == "ranking" {
			found = true
			if item.TotalFailures != 1 || item.ConsecutiveFailures != 1 {
				t.Fatalf("unexpected diagnostics: %+v", item)
			}
		}
	}
	if !found {
		t.Fatal("expected diagnostics entry for ranking source")
	}
}

func TestSearchPaginatesResolvedRecords(t *testing.T) {
	records := make([]domain.ResolvedRecord, 0, 30)
	for _, id := range sequentialIDs(30) {
		record := makeRecord(id)
		description := "desc"
		record.Description = &description
		records = append(records, record)
	}
	search := &fakeSearch{records: records}
	service := newTestService(&fakeLookup{}, WithSearchSource(search))

	page, err := service.Search(context.Background(), SearchRequest{
		Query: domain.SearchQuery{Term: "  chess  ", Country: "de"},
		Page:  domain.PageRequest{Offset: 25, Limit: 25},
	})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(page.Items) != 5 || page.Items[0].ID != 26 {
		t.Fatalf("unexpected items: %+v", page.Items)
	}
	if page.Items[0].Description == nil {
		t.Fatal("search summaries carry the description")
	}
	if page.Pagination.HasMore {
		t.Fatal("expected no more results")
	}
	if search.last.Term != "chess" || search.last.Country != "DE" {
		t.Fatalf("unexpected forwarded query: %+v", search.last)
	}
}

func TestSearchRequiresTerm(t *testing.T) {
	service := newTestService(&fakeLookup{}, WithSearchSource(&fakeSearch{}))

	_, err := service.Search(context.Background(), SearchRequest{Page: domain.PageRequest{Limit: 25}})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestDetails(t *testing.T) {
	lookup := &fakeLookup{missing: map[int64]bool{404: true}}
	service := newTestService(lookup)

	details, err := service.Details(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("details error: %v", err)
	}
	if details.ID != 42 {
		t.Fatalf("expected id 42, got %d", details.ID)
	}

	if _, err := service.Details(context.Background(), 404, "us"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := service.Details(context.Background(), 0, "us"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestOverlayByIDs(t *testing.T) {
	overlay := &fakeOverlay{failFor: map[int64]bool{2: true}}
	service := newTestService(&fakeLookup{}, WithOverlaySource(overlay, 2))

	results := service.Overlay(context.Background(), []int64{1, 2, 3}, "us")

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[2].Error == "" || results[1].Error != "" || results[3].Downloads == nil {
		t.Fatalf("unexpected results: %+v", results)
	}
}
