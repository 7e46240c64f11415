package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is shedding load.
var ErrOpen = errors.New("breaker open")

// BreakerConfig tunes a [Breaker]. Zero-value fields get defaults.
type BreakerConfig struct {
	// Name labels log messages.
	Name string

	// Threshold is the consecutive-failure count that opens the breaker.
	// Default: 5.
	Threshold int

	// Cooldown is how long the breaker rejects calls after opening; the
	// first call after the cooldown probes the downstream. Default: 15s.
	Cooldown time.Duration
}

// Breaker is a two-state (closed/open) circuit breaker. After Threshold
// consecutive failures it rejects calls for Cooldown; the next call through
// probes, and a success closes it again. Safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

// NewBreaker creates a Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	return &Breaker{name: cfg.Name, threshold: cfg.Threshold, cooldown: cfg.Cooldown}
}

// Do runs fn unless the breaker is open and cooling down, in which case it
// returns [ErrOpen] without calling fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.failures >= b.threshold && time.Since(b.openedAt) < b.cooldown {
		b.mu.Unlock()
		return ErrOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures == b.threshold {
			b.openedAt = time.Now()
			slog.Warn("breaker opened", "name", b.name, "failures", b.failures)
		} else if b.failures > b.threshold {
			// Failed probe; restart the cooldown.
			b.openedAt = time.Now()
		}
		return err
	}
	if b.failures >= b.threshold {
		slog.Info("breaker closed", "name", b.name)
	}
	b.failures = 0
	return nil
}
