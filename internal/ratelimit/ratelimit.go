package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned by Take when the current window is full.
var ErrBudgetExhausted = errors.New("request budget exhausted")

// Budget caps the number of requests sent to the provider within a window.
// The free Inference API tier allows 30 requests per minute.
type Budget struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	used      int
	throttled int
	total     int
	resetTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewBudget creates a budget of limit requests per window. A limit <= 0
// disables limiting.
func NewBudget(limit int, window time.Duration) *Budget {
	if window <= 0 {
		window = time.Minute
	}
	b := &Budget{
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: slog.Default(),
	}
	b.resetTime = b.now().Add(window)
	return b
}

// PerMinute is shorthand for NewBudget(limit, time.Minute).
func PerMinute(limit int) *Budget {
	return NewBudget(limit, time.Minute)
}

// WithClock swaps the time source, for tests.
func (b *Budget) WithClock(now func() time.Time) *Budget {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	b.resetTime = now().Add(b.window)
	return b
}

// WithLogger sets the logger used for limit warnings.
func (b *Budget) WithLogger(logger *slog.Logger) *Budget {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Allow reports whether a request could be sent now without consuming it.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	return b.limit <= 0 || b.used < b.limit
}

// Take consumes one slot of the current window.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if b.limit > 0 && b.used >= b.limit {
		b.logger.Warn("request budget reached", "used", b.used, "limit", b.limit, "resets_at", b.resetTime)
		return fmt.Errorf("%w (%d/%d, resets in %s)", ErrBudgetExhausted, b.used, b.limit,
			b.resetTime.Sub(b.now()).Round(time.Second))
	}

	b.used++
	b.total++
	b.logger.Debug("request budget", "used", b.used, "limit", b.limit)
	return nil
}

// RecordThrottled counts a 429 answered by the provider.
func (b *Budget) RecordThrottled() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.throttled++
}

// Stats returns current budget statistics.
func (b *Budget) Stats() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	return map[string]any{
		"used":       b.used,
		"limit":      b.limit,
		"total":      b.total,
		"throttled":  b.throttled,
		"window":     b.window.String(),
		"reset_time": b.resetTime,
	}
}

// checkReset opens a new window once the current one has passed.
func (b *Budget) checkReset() {
	if now := b.now(); !now.Before(b.resetTime) {
		b.used = 0
		b.resetTime = now.Add(b.window)
	}
}
