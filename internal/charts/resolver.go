package charts

import (
	"context"
	"errors"
	"time"

	"appcharts/chartservice/internal/domain"
	"appcharts/chartservice/internal/metrics"
)

const (
	DefaultCeiling    = 200
	DefaultBatchSize  = 50
	DefaultBatchDelay = 100 * time.Millisecond
)

// DelayFunc pauses between resolver batches. It must return early with the
// context error when ctx is done.
type DelayFunc func(ctx context.Context, d time.Duration) error

func SleepDelay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type ResolverConfig struct {
	// Ceiling is the most ids resolved for one request (the lookup
	// provider's hard limit).
	Ceiling   int
	BatchSize int
	// BatchDelay is the pause between consecutive batches.
	BatchDelay time.Duration
	Wait       DelayFunc
}

// BatchResolver turns ids into records through sequential, size-capped
// lookup calls.
type BatchResolver struct {
	lookup    LookupClient
	ceiling   int
	batchSize int
	delay     time.Duration
	wait      DelayFunc
	caller    *upstreamCaller
}

func NewBatchResolver(lookup LookupClient, cfg ResolverConfig) *BatchResolver {
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	delay := cfg.BatchDelay
	if delay < 0 {
		delay = 0
	}
	wait := cfg.Wait
	if wait == nil {
		wait = SleepDelay
	}
	return &BatchResolver{
		lookup:    lookup,
		ceiling:   ceiling,
		batchSize: batchSize,
		delay:     delay,
		wait:      wait,
	}
}

func (r *BatchResolver) Ceiling() int {
	return r.ceiling
}

// Resolve truncates ids to min(limit, ceiling), looks them up batch by batch
// and returns the records keyed by id. Ids the provider does not return are
// simply absent from the result. Any failed batch aborts the whole resolve.
func (r *BatchResolver) Resolve(ctx context.Context, ids []int64, limit int, country string) (map[int64]domain.ResolvedRecord, error) {
	if r.lookup == nil {
		return nil, errors.New("lookup client is not configured")
	}
	n := min(limit, r.ceiling, len(ids))
	if n <= 0 {
		return map[int64]domain.ResolvedRecord{}, nil
	}

	batches := splitBatches(ids[:n], r.batchSize)
	resolved := make(map[int64]domain.ResolvedRecord, n)
	for i, batch := range batches {
		if i > 0 {
			if err := r.wait(ctx, r.delay); err != nil {
				return nil, err
			}
		}
		if err := r.resolveBatch(ctx, batch, country, resolved); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func (r *BatchResolver) resolveBatch(ctx context.Context, batch []int64, country string, into map[int64]domain.ResolvedRecord) error {
	var records []domain.ResolvedRecord
	err := r.caller.do(ctx, r.lookup.Name(), func(callCtx context.Context) error {
		var lookupErr error
		records, lookupErr = r.lookup.Lookup(callCtx, batch, country)
		return lookupErr
	})
	metrics.ResolverBatchesTotal.Inc()
	if err != nil {
		return err
	}

	requested := make(map[int64]struct{}, len(batch))
	for _, id := range batch {
		requested[id] = struct{}{}
	}
	for _, record := range records {
		if _, ok := requested[record.ID]; !ok {
			continue
		}
		into[record.ID] = record
	}
	return nil
}

func splitBatches(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// Reconcile walks orderedIDs once and emits a ranked record for every id
// present in resolved. Rank is the id's 1-based position in orderedIDs, so an
// unresolved id leaves a gap in ranks rather than shifting later entries.
func Reconcile(orderedIDs []int64, resolved map[int64]domain.ResolvedRecord) []domain.EnrichedRecord {
	out := make([]domain.EnrichedRecord, 0, min(len(orderedIDs), len(resolved)))
	for position, id := range orderedIDs {
		record, ok := resolved[id]
		if !ok {
			continue
		}
		out = append(out, domain.EnrichedRecord{
			AppSummary: record.Summary(),
			Rank:       position + 1,
		})
	}
	if dropped := len(orderedIDs) - len(out); dropped > 0 {
		metrics.UnresolvedIdentifiersTotal.Add(float64(dropped))
	}
	return out
}
