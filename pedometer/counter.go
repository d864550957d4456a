// Package pedometer owns the step count and wires the sample source, step
// detector, notifications and background re-entry together.
package pedometer

import (
	"sort"
	"sync"
)

// Goal is the daily step goal shown on the progress ring.
const Goal = 7500

// Counter is the authoritative step tally. It only ever grows.
type Counter struct {
	mu    sync.Mutex
	value int
	subs  map[int]func(int)
	next  int
}

// NewCounter creates a Counter at zero.
func NewCounter() *Counter {
	return &Counter{subs: make(map[int]func(int))}
}

// Increment adds one step and notifies subscribers with the new value.
func (c *Counter) Increment() int {
	c.mu.Lock()
	c.value++
	v := c.value
	fns := c.subscribers()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return v
}

// Value returns the current count.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Subscribe registers fn to receive every new value. Subscribers must not
// block. The returned function cancels the subscription.
func (c *Counter) Subscribe(fn func(int)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	id := c.next
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// subscribers returns subscriber callbacks in registration order. Callers
// hold c.mu.
func (c *Counter) subscribers() []func(int) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(int), len(ids))
	for i, id := range ids {
		fns[i] = c.subs[id]
	}
	return fns
}
