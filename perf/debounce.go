package perf

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer delays fn until wait has passed since the most recent Call.
// Only the last argument is delivered.
type Debouncer[T any] struct {
	mu    sync.Mutex
	fn    func(T)
	wait  time.Duration
	clock clock.Clock
	timer *clock.Timer
	gen   uint64
}

// Debounce returns a trailing-edge debouncer around fn. A nil clock uses the wall clock.
func Debounce[T any](fn func(T), wait time.Duration, clk clock.Clock) *Debouncer[T] {
	return &Debouncer[T]{fn: fn, wait: wait, clock: orClock(clk)}
}

// Call restarts the wait with arg as the pending argument
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn(arg)
	})
}

// Stop cancels the pending call and reports whether one was pending
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Throttler passes the first call through and drops the rest until limit has
// elapsed. Dropped calls are not replayed.
type Throttler[T any] struct {
	mu    sync.Mutex
	fn    func(T)
	limit time.Duration
	clock clock.Clock
	until time.Time
}

// Throttle returns a leading-edge throttler around fn. A nil clock uses the wall clock.
func Throttle[T any](fn func(T), limit time.Duration, clk clock.Clock) *Throttler[T] {
	return &Throttler[T]{fn: fn, limit: limit, clock: orClock(clk)}
}

// Call invokes fn unless the lockout window is open; it reports whether fn ran
func (t *Throttler[T]) Call(arg T) bool {
	t.mu.Lock()
	now := t.clock.Now()
	if now.Before(t.until) {
		t.mu.Unlock()
		return false
	}
	t.until = now.Add(t.limit)
	t.mu.Unlock()

	t.fn(arg)
	return true
}
