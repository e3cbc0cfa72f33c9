package counter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/planet0104/keyboard-counter/pkg/input"
)

// Counter guards a single State. Hook callbacks call Receive; the saver and
// display take snapshots. No method holds the lock across I/O.
type Counter struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time

	received atomic.Uint64
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock replaces time.Now as the source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

// New wraps state. The caller must not keep using state's maps afterwards.
func New(state State, opts ...Option) *Counter {
	c := &Counter{state: state, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Receive classifies ev using the counter's clock. The clock is read under
// the lock so timestamps reach the state in the order they were taken.
func (c *Counter) Receive(ev input.Event) {
	c.mu.Lock()
	c.state.Receive(ev, c.now())
	c.mu.Unlock()

	c.received.Add(1)
}

// Clear zeroes every counter.
func (c *Counter) Clear() {
	c.mu.Lock()
	c.state.Clear()
	c.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (c *Counter) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Replace swaps in a whole new state, e.g. after a reload.
func (c *Counter) Replace(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Received returns the number of events passed to Receive since New.
func (c *Counter) Received() uint64 {
	return c.received.Load()
}
