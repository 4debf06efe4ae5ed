package charts

import (
	"context"
	"errors"
	"testing"
	"time"

	"appcharts/chartservice/internal/domain"
)

func TestHealthTrackerCountsFailuresAndResets(t *testing.T) {
	tracker := newHealthTracker()
	tracker.register("Lookup", "lookup")
	now := time.Now()

	tracker.record("lookup", errors.New("boom"), 10*time.Millisecond, now)
	tracker.record("lookup", context.DeadlineExceeded, 20*time.Millisecond, now)

	items := tracker.diagnostics()
	if len(items) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(items))
	}
	item := items[0]
	if item.Role != "lookup" || item.ConsecutiveFailures != 2 || item.TimeoutCount != 1 || !item.LastTimeout {
		t.Fatalf("unexpected diagnostics: %+v", item)
	}

	tracker.record("lookup", nil, 5*time.Millisecond, now.Add(time.Second))
	item = tracker.diagnostics()[0]
	if item.ConsecutiveFailures != 0 || item.LastError != "" || item.LastSuccessAt == nil {
		t.Fatalf("expected reset after success: %+v", item)
	}
	if item.TotalRequests != 3 || item.TotalFailures != 2 {
		t.Fatalf("unexpected totals: %+v", item)
	}
}

func TestHealthDiagnosticsSortedByName(t *testing.T) {
	tracker := newHealthTracker()
	tracker.register("sensortower", "overlay")
	tracker.register("itunes-lookup", "lookup")
	tracker.register("applecharts", "ranking-v2")

	items := tracker.diagnostics()
	if items[0].Name != "applecharts" || items[2].Name != "sensortower" {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestUpstreamCallerSkipsValidationErrors(t *testing.T) {
	tracker := newHealthTracker()
	caller := &upstreamCaller{timeout: time.Second, retry: fastRetry(1), health: tracker}

	err := caller.do(context.Background(), "ranking", func(ctx context.Context) error {
		return domain.InvalidCategory("Bogus")
	})
	if !errors.Is(err, domain.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if len(tracker.diagnostics()) != 0 {
		t.Fatal("validation errors are not upstream outcomes")
	}
}

func TestUpstreamCallerAppliesPerCallTimeout(t *testing.T) {
	caller := &upstreamCaller{timeout: 20 * time.Millisecond, retry: fastRetry(1), health: newHealthTracker()}

	err := caller.do(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
