package charts

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"appcharts/chartservice/internal/domain"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig allows three attempts, waiting roughly 300ms then 600ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// backoff is the un-jittered pause after the given zero-based failed attempt.
func (c RetryConfig) backoff(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := time.Duration(float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// RetryWithBackoff calls fn until it succeeds, fails permanently or the
// attempts run out, sleeping a jittered exponential backoff in between.
// Only transport-level failures are retried. An upstream that answered with a
// status code is reported immediately.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := range attempts {
		if err = fn(); err == nil || !isTransientError(err) {
			return err
		}
		if attempt == attempts-1 || ctx.Err() != nil {
			break
		}
		pause := applyJitter(cfg.backoff(attempt))
		if cfg.MaxDelay > 0 {
			pause = min(pause, cfg.MaxDelay)
		}
		if SleepDelay(ctx, pause) != nil {
			break
		}
	}
	return err
}

func applyJitter(d time.Duration) time.Duration {
	// [0.75, 1.25)
	return time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
}

func isTransientError(err error) bool {
	var upstream *domain.UpstreamError
	var netErr net.Error
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrInvalidCategory), errors.Is(err, domain.ErrInvalidRequest):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &upstream) && upstream.IsStatus():
		return false
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection reset", "connection refused"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
