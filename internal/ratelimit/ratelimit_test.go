package ratelimit

import (
	"errors"
	"testing"
	"time"
)

// fakeClock advances manually so window expiry is deterministic.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWindow(limit int, period time.Duration) (*Window, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	w := NewWindow(limit, period)
	w.now = clock.now
	return w, clock
}

func TestWindow_AllowsUpToLimit(t *testing.T) {
	w, _ := newTestWindow(3, time.Minute)
	for i := 0; i < 3; i++ {
		if err := w.Allow(); err != nil {
			t.Fatalf("call %d unexpectedly limited: %v", i, err)
		}
	}
	if err := w.Allow(); err == nil {
		t.Fatal("4th call should be limited")
	}
}

func TestWindow_ReportsWaitTime(t *testing.T) {
	w, clock := newTestWindow(1, time.Minute)
	if err := w.Allow(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	clock.advance(20 * time.Second)

	err := w.Allow()
	var waitErr *WaitError
	if !errors.As(err, &waitErr) {
		t.Fatalf("expected *WaitError, got %v", err)
	}
	if waitErr.Wait != 40*time.Second {
		t.Fatalf("wait = %v, want 40s", waitErr.Wait)
	}
}

func TestWindow_OldCallsAgeOut(t *testing.T) {
	w, clock := newTestWindow(2, time.Minute)
	if err := w.Allow(); err != nil {
		t.Fatalf("call 1: %v", err)
	}
	if err := w.Allow(); err != nil {
		t.Fatalf("call 2: %v", err)
	}
	if err := w.Allow(); err == nil {
		t.Fatal("call 3 should be limited")
	}

	clock.advance(61 * time.Second)
	if err := w.Allow(); err != nil {
		t.Fatalf("call after window expiry should pass: %v", err)
	}
}

func TestWindow_RejectedCallIsNotRecorded(t *testing.T) {
	w, clock := newTestWindow(1, time.Minute)
	if err := w.Allow(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := w.Allow(); err == nil {
			t.Fatal("should stay limited")
		}
	}
	clock.advance(61 * time.Second)
	if err := w.Allow(); err != nil {
		t.Fatalf("rejected calls must not extend the window: %v", err)
	}
}

func TestWindow_InstancesAreIndependent(t *testing.T) {
	a, _ := newTestWindow(1, time.Minute)
	b, _ := newTestWindow(1, time.Minute)
	if err := a.Allow(); err != nil {
		t.Fatalf("a: %v", err)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("b must not share state with a: %v", err)
	}
}
