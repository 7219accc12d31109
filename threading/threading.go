// Package threading provides the small set of concurrency primitives the
// runtime's client/server/arbitrator layers build on: a binary Mutex, a
// counting Semaphore, and a Thread abstraction over goroutines. Go has no
// equivalent of the original runtime's RTOS thread handle, so Thread wraps
// a goroutine plus a completion signal rather than a scheduler-level
// object.
//
// Grounded on the prior implementation's middleware.TimeOutMiddleware (the
// goroutine-plus-channel race pattern) and rate_limit_middleware.go (a
// long-lived limiter held in an outer closure, never recreated per call).
package threading

import (
	"context"
	"sync"
)

// Mutex is a thin wrapper over sync.Mutex with no functional difference
// from it. It is not recursive: a goroutine that calls Lock twice without
// an Unlock in between deadlocks.
type Mutex struct {
	mu sync.Mutex
}

func (m *Mutex) Lock()   { m.mu.Lock() }
func (m *Mutex) Unlock() { m.mu.Unlock() }

// Semaphore is a counting semaphore backed by a buffered channel, the
// idiom the prior implementation's pool types (transport.ConnPool, ClientTransport's
// pending map) already lean on for bounded concurrency.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore returns a semaphore with the given number of permits.
func NewSemaphore(permits int) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, permits)}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire acquires a permit only if one is immediately available,
// never blocking — the non-blocking query §9 calls for explicitly rather
// than folding into Acquire with a zero timeout.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
		panic("threading: Release without matching Acquire")
	}
}

// Thread runs fn on its own goroutine and reports completion via Join.
// The server, client manager and arbitrator start their goroutines
// directly and do not use Thread.
type Thread struct {
	done chan struct{}
}

// Start launches fn on a new goroutine and returns immediately.
func Start(fn func()) *Thread {
	t := &Thread{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		fn()
	}()
	return t
}

// Join blocks until the thread's function returns, or ctx is done —
// mirroring the race-the-timeout pattern in TimeOutMiddleware.
func (t *Thread) Join(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports, without blocking, whether the thread has finished.
func (t *Thread) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
