// Package state holds independently observable session values.
package state

import (
	"context"
	"sync"
	"sync/atomic"
)

// Cell is a current value plus an ordered list of observers.
//
// Current never blocks. Publishes are serialised and every observer receives
// them in the same order. Observers run on the publishing goroutine and must
// not publish to, or subscribe to, the same cell synchronously.
type Cell[T any] struct {
	current atomic.Pointer[T]

	// publishMu serialises Publish and the replay in Subscribe.
	publishMu sync.Mutex

	observersMu sync.Mutex
	observers   []*observer[T]
}

type observer[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	c := &Cell[T]{}
	c.current.Store(&initial)
	return c
}

// Current returns the last published value.
func (c *Cell[T]) Current() T {
	return *c.current.Load()
}

// Publish replaces the current value and notifies observers in subscription order.
// Current returns v to any reader once Publish has started notifying.
func (c *Cell[T]) Publish(v T) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.current.Store(&v)

	for _, o := range c.snapshot() {
		if o.active.Load() {
			o.fn(v)
		}
	}
}

// Subscribe delivers the current value to fn, then every later publish,
// until the returned cancel func is called. Cancel is idempotent.
func (c *Cell[T]) Subscribe(fn func(T)) (cancel func()) {
	o := &observer[T]{fn: fn}
	o.active.Store(true)

	c.publishMu.Lock()
	c.observersMu.Lock()
	c.observers = append(c.observers, o)
	c.observersMu.Unlock()
	fn(c.Current())
	c.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.active.Store(false)
			c.remove(o)
		})
	}
}

// Wait blocks until the current value satisfies pred or ctx is done.
func (c *Cell[T]) Wait(ctx context.Context, pred func(T) bool) (T, error) {
	signal := make(chan struct{}, 1)
	cancel := c.Subscribe(func(T) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		if v := c.Current(); pred(v) {
			return v, nil
		}

		select {
		case <-signal:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of active observers.
func (c *Cell[T]) Len() int {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	return len(c.observers)
}

func (c *Cell[T]) snapshot() []*observer[T] {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	out := make([]*observer[T], len(c.observers))
	copy(out, c.observers)
	return out
}

func (c *Cell[T]) remove(o *observer[T]) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	for i, existing := range c.observers {
		if existing == o {
			c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
			return
		}
	}
}
