package buffer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"erpcgo/errs"
)

// StaticFactory hands out buffers from a fixed array of N buffers of
// capacity B, tracked by a bitmap rather than allocating per call — the
// no-heap substitute required by the "static" allocation policy (§3, §6).
//
// The bitmap is guarded by a weighted semaphore sized to N: Create
// acquires one unit (blocking if the pool is exhausted) then scans for the
// first clear bit; Dispose releases the bit and returns the unit. This is
// the ecosystem-standard counting semaphore (golang.org/x/sync/semaphore)
// rather than the channel-based erpcgo/threading.Semaphore used elsewhere
// in the runtime, because TryAcquire gives the non-blocking "is a slot
// free" query the §9 open question asks to be made explicit, without
// reimplementing it on a channel.
type StaticFactory struct {
	storage []byte
	count   int
	size    int
	mu      sync.Mutex
	inUse   []bool
	slots   map[*Buffer]int
	sem     *semaphore.Weighted
}

// NewStaticFactory preallocates count buffers of the given size in one
// contiguous backing array.
func NewStaticFactory(count, size int) *StaticFactory {
	return &StaticFactory{
		storage: make([]byte, count*size),
		count:   count,
		size:    size,
		inUse:   make([]bool, count),
		slots:   make(map[*Buffer]int, count),
		sem:     semaphore.NewWeighted(int64(count)),
	}
}

// Create blocks until a buffer slot is free, then returns a view over it.
// Returns nil if the pool's context is cancelled (Create uses
// context.Background by default; use CreateContext to bound the wait).
func (f *StaticFactory) Create() *Buffer {
	buf, _ := f.CreateContext(context.Background())
	return buf
}

// CreateContext is Create with an explicit context, so bare-metal/poll
// callers that cannot block indefinitely can bound the wait.
func (f *StaticFactory) CreateContext(ctx context.Context) (*Buffer, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, errs.New(errs.StatusMemoryError, "static buffer pool exhausted")
	}
	f.mu.Lock()
	idx := -1
	for i, used := range f.inUse {
		if !used {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		f.sem.Release(1)
		return nil, errs.New(errs.StatusMemoryError, "static buffer pool bitmap desynchronized")
	}
	f.inUse[idx] = true
	start := idx * f.size
	b := New(f.storage[start : start+f.size : start+f.size])
	f.slots[b] = idx
	f.mu.Unlock()

	return b, nil
}

// TryCreate is the non-blocking variant: it returns nil immediately if no
// slot is free, rather than waiting.
func (f *StaticFactory) TryCreate() *Buffer {
	if !f.sem.TryAcquire(1) {
		return nil
	}
	f.mu.Lock()
	idx := -1
	for i, used := range f.inUse {
		if !used {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		f.sem.Release(1)
		return nil
	}
	f.inUse[idx] = true
	start := idx * f.size
	b := New(f.storage[start : start+f.size : start+f.size])
	f.slots[b] = idx
	f.mu.Unlock()
	return b
}

// Dispose clears the bit for buf's backing slot and releases the semaphore
// unit. buf must have come from this factory.
func (f *StaticFactory) Dispose(buf *Buffer) {
	if buf == nil {
		return
	}
	f.mu.Lock()
	idx, ok := f.slots[buf]
	if !ok {
		f.mu.Unlock()
		return
	}
	delete(f.slots, buf)
	f.inUse[idx] = false
	f.mu.Unlock()
	f.sem.Release(1)
}

func (f *StaticFactory) CreateServerBuffer() bool { return true }

func (f *StaticFactory) PrepareServerBufferForSend(*Buffer) error { return nil }

var _ Factory = (*StaticFactory)(nil)
