// Package clock provides the coordinator's single monotonic logical
// clock (§4.1), used to order sync-log entries across concurrent
// requests. It is not used for conflict arbitration — see
// domain/conflict for that.
package clock

import "sync"

// Logical is a mutex-guarded Lamport-style counter, safe for concurrent
// use from multiple HTTP handlers.
type Logical struct {
	mu    sync.Mutex
	value int64
}

// New returns a clock starting at zero.
func New() *Logical {
	return &Logical{}
}

// Tick advances the clock to max(local, received)+1 and returns the new
// value, per §4.1's definition.
func (c *Logical) Tick(received int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if received > c.value {
		c.value = received
	}
	c.value++
	return c.value
}

// Value returns the current value without advancing it.
func (c *Logical) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
