// Package reactor implements the single-threaded readiness-multiplexed
// I/O loop that drives every transport in the engine, plus the
// synchronous timer wheel it ticks on each pass. Grounded on
// original_source/sxsuite/timer.py (module-level sorted timer list) and
// reaktor.py (asyncore.loop + run_timers loop), re-architected per
// spec.md §9 as explicit context objects instead of module globals.
package reactor

import (
	"sync"
	"time"
)

// TimerFunc is a deferred callback. It may itself call Add or Cancel on
// the same Wheel — RunDue re-scans after each fire so newly added timers
// with a due deadline fire within the same pass (spec.md §4.1).
type TimerFunc func()

type timerEntry struct {
	deadline time.Time
	id       uint64
	fn       TimerFunc
}

// Wheel is a sorted list of deferred callbacks ordered by deadline, with
// monotonically increasing ids. It is not safe for concurrent use from
// multiple goroutines by design — like the reactor it belongs to, it is
// meant to be driven from a single thread; the mutex only guards against
// a timer callback reentrantly calling Add/Cancel on itself mid-RunDue.
type Wheel struct {
	mu      sync.Mutex
	entries []timerEntry
	nextID  uint64
	now     func() time.Time
}

// NewWheel creates an empty timer wheel.
func NewWheel() *Wheel {
	return &Wheel{now: time.Now}
}

// Add schedules fn to run after delay, returning a ascending timer id.
// Entries with equal deadlines fire in insertion order (spec.md §4.1).
func (w *Wheel) Add(delay time.Duration, fn TimerFunc) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID
	deadline := w.now().Add(delay)

	i := len(w.entries)
	for i > 0 && w.entries[i-1].deadline.After(deadline) {
		i--
	}
	entry := timerEntry{deadline: deadline, id: id, fn: fn}
	w.entries = append(w.entries, timerEntry{})
	copy(w.entries[i+1:], w.entries[i:])
	w.entries[i] = entry
	return id
}

// Cancel removes a timer by id. No error if absent.
func (w *Wheel) Cancel(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.entries {
		if e.id == id {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return
		}
	}
}

// RunDue pops and invokes every timer whose deadline has passed. Called
// by the reactor once per loop iteration.
func (w *Wheel) RunDue() {
	for {
		w.mu.Lock()
		if len(w.entries) == 0 || w.entries[0].deadline.After(w.now()) {
			w.mu.Unlock()
			return
		}
		due := w.entries[0]
		w.entries = w.entries[1:]
		w.mu.Unlock()

		due.fn()
	}
}

// Flush drops all pending timers, unconditionally. Used by a freshly
// started application-channel worker to discard any timers it might
// otherwise have inherited state for (spec.md §4.7).
func (w *Wheel) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}

// Len reports the number of pending timers (used by tests and by the
// reactor's idle-detection).
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
