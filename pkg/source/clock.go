package source

import (
	"sync"
	"time"
)

// ReplayClock reports the capture time of the event a JSONLines source is
// currently emitting. Unstamped events fall back to the wrapped clock.
//
// Emit runs synchronously, so a counter built with the clock's Now sees the
// recorded time of the event it is classifying.
type ReplayClock struct {
	mu       sync.Mutex
	at       time.Time
	fallback func() time.Time
}

// NewReplayClock returns a clock that defers to fallback until a stamped
// event is replayed. A nil fallback uses time.Now.
func NewReplayClock(fallback func() time.Time) *ReplayClock {
	if fallback == nil {
		fallback = time.Now
	}
	return &ReplayClock{fallback: fallback}
}

// Now returns the current event's capture time.
func (c *ReplayClock) Now() time.Time {
	c.mu.Lock()
	at := c.at
	c.mu.Unlock()
	if at.IsZero() {
		return c.fallback()
	}
	return at
}

func (c *ReplayClock) set(at time.Time) {
	c.mu.Lock()
	c.at = at
	c.mu.Unlock()
}
