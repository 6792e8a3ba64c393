// Package clock provides the time source used by every time-based
// component in the engine, with a test override hook.
package clock

import (
	"sync"
	"time"
)

// Clock provides timestamp generation for outbound messages. Unique
// returns strictly increasing times even when called multiple times
// within the same millisecond, so two sends in the same tick still
// order deterministically on the client.
type Clock struct {
	mu         sync.Mutex
	lastUnique time.Time
	nowFn      func() time.Time // overridable for testing
}

// New creates a Clock that uses the system clock.
func New() *Clock {
	return &Clock{nowFn: time.Now}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowFn()
}

// Unique returns a strictly increasing timestamp. If the real clock
// hasn't advanced past the last returned value, the previous value is
// bumped by one millisecond.
func (c *Clock) Unique() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.nowFn()
	if !t.After(c.lastUnique) {
		c.lastUnique = c.lastUnique.Add(time.Millisecond)
		return c.lastUnique
	}
	c.lastUnique = t
	return t
}
