// Package ratelimit implements a rolling-window call limiter. Each Window
// owns its own timestamp state, so two stores (or a store and a test) never
// interfere with each other.
package ratelimit

import (
	"fmt"
	"time"
)

// WaitError reports that the window is full and how long the caller must
// wait before the oldest call ages out.
type WaitError struct {
	Wait time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, wait %.1fs", e.Wait.Seconds())
}

// Window permits at most limit calls per rolling period.
// Not safe for concurrent use; callers are single-threaded by design.
type Window struct {
	limit  int
	period time.Duration
	calls  []time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewWindow creates a limiter allowing limit calls per period.
func NewWindow(limit int, period time.Duration) *Window {
	return &Window{
		limit:  limit,
		period: period,
		now:    time.Now,
	}
}

// Allow records one call if the window has room. When the window is full it
// returns a *WaitError carrying the remaining wait time and records nothing.
func (w *Window) Allow() error {
	now := w.now()
	cutoff := now.Add(-w.period)

	// Drop calls that have aged out of the window.
	kept := w.calls[:0]
	for _, c := range w.calls {
		if c.After(cutoff) {
			kept = append(kept, c)
		}
	}
	w.calls = kept

	if len(w.calls) >= w.limit {
		wait := w.period - now.Sub(w.calls[0])
		return &WaitError{Wait: wait}
	}

	w.calls = append(w.calls, now)
	return nil
}
