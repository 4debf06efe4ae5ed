package charts

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"appcharts/chartservice/internal/domain"
	"appcharts/chartservice/internal/metrics"
)

const defaultOverlayWorkers = 8

var errOverlayUnavailable = errors.New("overlay source is not configured")

// RankWindow is an inclusive rank range.
type RankWindow struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (w RankWindow) Valid() bool {
	return w.From >= 1 && w.To >= w.From
}

func (w RankWindow) Contains(rank int) bool {
	return w.Valid() && rank >= w.From && rank <= w.To
}

// OverlayEnricher attaches analytics from an independent source. A failed
// fetch degrades to an error-carrying OverlayData for that id only.
type OverlayEnricher struct {
	source  OverlaySource
	workers int
	caller  *upstreamCaller
	logger  *slog.Logger
}

func NewOverlayEnricher(source OverlaySource, workers int) *OverlayEnricher {
	if workers <= 0 {
		workers = defaultOverlayWorkers
	}
	return &OverlayEnricher{
		source:  source,
		workers: workers,
		logger:  slog.Default(),
	}
}

// Enrich returns a copy of records where every entry whose rank falls inside
// window carries overlay data. Records outside the window are unchanged.
func (e *OverlayEnricher) Enrich(ctx context.Context, records []domain.EnrichedRecord, window RankWindow, country string) []domain.EnrichedRecord {
	if e == nil || e.source == nil || !window.Valid() {
		return records
	}
	ids := make([]int64, 0)
	for _, record := range records {
		if window.Contains(record.Rank) {
			ids = append(ids, record.ID)
		}
	}
	if len(ids) == 0 {
		return records
	}

	overlays := e.FetchAll(ctx, ids, country)
	out := make([]domain.EnrichedRecord, len(records))
	copy(out, records)
	for i := range out {
		if !window.Contains(out[i].Rank) {
			continue
		}
		if data, ok := overlays[out[i].ID]; ok {
			out[i].Overlay = &data
		}
	}
	return out
}

// FetchAll issues one overlay fetch per distinct id, concurrently, and joins
// them. The result always has an entry for every requested id.
func (e *OverlayEnricher) FetchAll(ctx context.Context, ids []int64, country string) map[int64]domain.OverlayData {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	results := make(map[int64]domain.OverlayData, len(unique))
	if len(unique) == 0 {
		return results
	}
	if e == nil || e.source == nil {
		for _, id := range unique {
			results[id] = domain.FailedOverlay(errOverlayUnavailable)
		}
		return results
	}

	sem := semaphore.NewWeighted(int64(e.workers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range unique {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			var data domain.OverlayData
			if err := sem.Acquire(ctx, 1); err != nil {
				data = domain.FailedOverlay(err)
			} else {
				data = e.fetchOne(ctx, id, country)
				sem.Release(1)
			}
			mu.Lock()
			results[id] = data
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}

func (e *OverlayEnricher) fetchOne(ctx context.Context, id int64, country string) domain.OverlayData {
	var data domain.OverlayData
	err := e.caller.do(ctx, e.source.Name(), func(callCtx context.Context) error {
		var fetchErr error
		data, fetchErr = e.source.FetchOverlay(callCtx, id, country)
		return fetchErr
	})
	if err != nil {
		metrics.OverlayFetchesTotal.WithLabelValues("error").Inc()
		e.logger.Warn("overlay fetch failed",
			slog.Int64("appId", id),
			slog.String("country", country),
			slog.String("error", err.Error()),
		)
		return domain.FailedOverlay(err)
	}
	metrics.OverlayFetchesTotal.WithLabelValues("ok").Inc()
	if data.RevenueUnit == "" {
		data.RevenueUnit = domain.DefaultRevenueUnit
	}
	return data
}
