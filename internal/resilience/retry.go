// Package resilience protects the serving path from transient storage
// failures: a bounded retry for retriable errors and a circuit breaker that
// sheds load once the store looks down.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gunba/taxiv/pkg/legis"
)

// RetryConfig tunes [Retry]. Zero-value fields are replaced with defaults.
type RetryConfig struct {
	// Attempts is the total number of tries. Default: 3.
	Attempts int

	// BaseDelay is the first backoff; each retry doubles it. Default: 50ms.
	BaseDelay time.Duration
}

// Retry runs fn up to cfg.Attempts times, backing off between tries. Only
// [legis.ErrStoreUnavailable] is retried; every other error — including
// [legis.ErrDeadlineExceeded] — returns immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 50 * time.Millisecond
	}

	delay := cfg.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, legis.ErrStoreUnavailable) || attempt == cfg.Attempts {
			return err
		}
		slog.Warn("store unavailable, retrying", "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// RetryResult is the value-returning form of [Retry].
func RetryResult[R any](ctx context.Context, cfg RetryConfig, fn func() (R, error)) (R, error) {
	var out R
	err := Retry(ctx, cfg, func() error {
		var innerErr error
		out, innerErr = fn()
		return innerErr
	})
	return out, err
}
