// Package storage provides the manually-managed constructs §3/§4.11 model
// on placement-new plus an explicit destroy call: a typed Cell with an
// explicit construct/destroy lifetime, and a bounded ring Queue for
// inter-goroutine buffer handoff. Go has no placement-new and no manual
// memory management, so both types exist to carry the *lifetime contract*
// (construct once, destroy explicitly, never rely on implicit cleanup)
// rather than to avoid garbage collection.
package storage

import "sync"

// Cell holds a lazily-constructed value with an explicit, idempotent
// construct/destroy pair — the nearest Go analogue of a reusable
// statically-allocated object slot. Used by the erpc setup shim for its
// optional package-level singleton bindings (§4.11), so those singletons
// are never implicitly created by init() or a bare package var.
type Cell[T any] struct {
	mu          sync.Mutex
	constructed bool
	value       T
}

// Construct builds the cell's value via fn exactly once; later calls
// before a Destroy are no-ops and return the value already built.
func (c *Cell[T]) Construct(fn func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.constructed {
		c.value = fn()
		c.constructed = true
	}
	return c.value
}

// Get returns the cell's value and whether it has been constructed.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.constructed
}

// Destroy runs cleanup (if non-nil) against the current value, then marks
// the cell unconstructed so a later Construct rebuilds it from scratch.
func (c *Cell[T]) Destroy(cleanup func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.constructed {
		return
	}
	if cleanup != nil {
		cleanup(c.value)
	}
	var zero T
	c.value = zero
	c.constructed = false
}
