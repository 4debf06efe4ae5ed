package charts

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"appcharts/chartservice/internal/domain"
	"appcharts/chartservice/internal/metrics"
)

type providerHealth struct {
	role                string
	consecutiveFailures int
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

// healthTracker keeps per-upstream call statistics for diagnostics. It never
// short-circuits calls: every request still reaches its upstream.
type healthTracker struct {
	mu    sync.Mutex
	state map[string]*providerHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{state: make(map[string]*providerHealth)}
}

func (h *healthTracker) register(name, role string) {
	if h == nil {
		return
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if state, ok := h.state[name]; ok {
		if state.role == "" {
			state.role = role
		}
		return
	}
	h.state[name] = &providerHealth{role: role}
}

func (h *healthTracker) record(providerName string, err error, latency time.Duration, now time.Time) {
	if h == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.state[name]
	if state == nil {
		state = &providerHealth{}
		h.state[name] = state
	}
	state.totalRequests++
	if latency > 0 {
		state.lastLatency = latency
		metrics.UpstreamRequestDuration.WithLabelValues(name).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.UpstreamRequestsTotal.WithLabelValues(name, "ok").Inc()
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(name, status).Inc()
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (h *healthTracker) diagnostics() []domain.ProviderDiagnostics {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	items := make([]domain.ProviderDiagnostics, 0, len(h.state))
	for name, state := range h.state {
		item := domain.ProviderDiagnostics{
			Name:                name,
			Role:                state.role,
			ConsecutiveFailures: state.consecutiveFailures,
			LastError:           state.lastError,
			LastLatencyMS:       state.lastLatency.Milliseconds(),
			LastTimeout:         state.lastTimeout,
			TotalRequests:       state.totalRequests,
			TotalFailures:       state.totalFailures,
			TimeoutCount:        state.timeoutCount,
		}
		if !state.lastSuccessAt.IsZero() {
			lastSuccessAt := state.lastSuccessAt
			item.LastSuccessAt = &lastSuccessAt
		}
		if !state.lastFailureAt.IsZero() {
			lastFailureAt := state.lastFailureAt
			item.LastFailureAt = &lastFailureAt
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

// upstreamCaller runs one upstream call with its own deadline, retrying
// transport failures, and records the outcome against the provider.
type upstreamCaller struct {
	timeout time.Duration
	retry   RetryConfig
	health  *healthTracker
}

func (c *upstreamCaller) do(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	if c == nil {
		return fn(ctx)
	}
	startedAt := time.Now()
	err := RetryWithBackoff(ctx, c.retry, func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if errors.Is(err, domain.ErrInvalidCategory) || errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, context.Canceled) {
		return err
	}
	c.health.record(provider, err, time.Since(startedAt), time.Now())
	return err
}
