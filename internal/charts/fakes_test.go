package charts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"appcharts/chartservice/internal/domain"
)

func makeRecord(id int64) domain.ResolvedRecord {
	return domain.ResolvedRecord{
		ID:       id,
		Name:     fmt.Sprintf("app-%d", id),
		Creator:  "dev",
		Category: "Games",
	}
}

func sequentialIDs(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

type fakeLookup struct {
	// missing ids are never returned
	missing map[int64]bool
	err     error

	mu      sync.Mutex
	batches [][]int64
}

func (l *fakeLookup) Name() string { return "lookup" }

func (l *fakeLookup) Lookup(ctx context.Context, ids []int64, country string) ([]domain.ResolvedRecord, error) {
	_ = ctx
	_ = country
	l.mu.Lock()
	l.batches = append(l.batches, append([]int64(nil), ids...))
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]domain.ResolvedRecord, 0, len(ids))
	// reversed to prove ordering never relies on provider order
	for i := len(ids) - 1; i >= 0; i-- {
		if l.missing[ids[i]] {
			continue
		}
		out = append(out, makeRecord(ids[i]))
	}
	return out, nil
}

func (l *fakeLookup) batchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

type fakeIdentifierSource struct {
	ids     []int64
	err     error
	invalid bool
	hits    atomic.Int32
}

func (s *fakeIdentifierSource) Name() string { return "ranking" }

func (s *fakeIdentifierSource) Validate(query domain.RankingQuery) error {
	if s.invalid {
		return domain.InvalidCategory(query.Category)
	}
	return nil
}

func (s *fakeIdentifierSource) FetchIdentifiers(ctx context.Context, query domain.RankingQuery) ([]int64, error) {
	_ = ctx
	_ = query
	s.hits.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return append([]int64(nil), s.ids...), nil
}

type fakeSearch struct {
	records []domain.ResolvedRecord
	last    domain.SearchQuery
}

func (s *fakeSearch) Name() string { return "search" }

func (s *fakeSearch) Search(ctx context.Context, query domain.SearchQuery) ([]domain.ResolvedRecord, error) {
	_ = ctx
	s.last = query
	return append([]domain.ResolvedRecord(nil), s.records...), nil
}

type fakeOverlay struct {
	failFor map[int64]bool
	calls   atomic.Int32
}

func (o *fakeOverlay) Name() string { return "overlay" }

func (o *fakeOverlay) FetchOverlay(ctx context.Context, id int64, country string) (domain.OverlayData, error) {
	_ = ctx
	_ = country
	o.calls.Add(1)
	if o.failFor[id] {
		return domain.OverlayData{}, &domain.UpstreamError{Provider: "overlay", StatusCode: 500}
	}
	downloads := float64(id * 100)
	revenue := float64(id * 10)
	return domain.OverlayData{Downloads: &downloads, Revenue: &revenue}, nil
}

func noWait(ctx context.Context, d time.Duration) error { return nil }

type recordingWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *recordingWait) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	return nil
}
