// Package buffer implements the non-owning byte-region view and cursor that
// every codec and transport in the runtime reads and writes through.
//
// A Buffer never allocates on its own behalf after construction: a Factory
// owns the backing storage, hands out Buffers, and reclaims them. This
// mirrors the prior implementation's pool-of-connections idiom (transport.ConnPool)
// applied to byte storage instead of net.Conn values.
package buffer

import "erpcgo/errs"

// Buffer is a view over a contiguous byte region: base, capacity, and how
// much of it has been written (used). used <= capacity always holds.
type Buffer struct {
	base     []byte
	capacity int
	used     int
}

// New wraps an existing byte slice as a Buffer with used=0. The slice's
// capacity (not its length) becomes the Buffer's capacity, so callers
// typically pass make([]byte, 0, size) or a reused []byte whose previous
// contents are about to be overwritten.
func New(storage []byte) *Buffer {
	return &Buffer{base: storage[:cap(storage)], capacity: cap(storage)}
}

// Capacity returns the total addressable size of the buffer.
func (b *Buffer) Capacity() int { return b.capacity }

// Used returns how many bytes have been written (send direction) or
// received (receive direction) so far.
func (b *Buffer) Used() int { return b.used }

// SetUsed overrides the used count directly. Transports call this after
// filling the buffer outside of a Cursor (e.g. a raw io.ReadFull into the
// backing slice).
func (b *Buffer) SetUsed(n int) error {
	if n < 0 || n > b.capacity {
		return errs.New(errs.StatusBufferOverrun, "SetUsed out of range")
	}
	b.used = n
	return nil
}

// Bytes returns the written portion of the buffer (base[:used]).
func (b *Buffer) Bytes() []byte { return b.base[:b.used] }

// Raw returns the full backing storage (base[:capacity]), for code that
// needs to write past `used` directly (frame header prefixes).
func (b *Buffer) Raw() []byte { return b.base[:b.capacity] }

// Read copies n bytes starting at offset into dst. Fails with
// ErrBufferOverrun if offset+n exceeds capacity, overflows, or reads past
// used (a distinct receive-underrun flavored error, per §4.1).
func (b *Buffer) Read(offset int, dst []byte, n int) error {
	if n == 0 {
		return nil
	}
	if dst == nil {
		return errs.ErrMemoryError
	}
	if offset < 0 || n < 0 || offset+n < offset || offset+n > b.capacity {
		return errs.ErrBufferOverrun
	}
	if offset+n > b.used {
		return errs.ErrReceiveUnderrun
	}
	copy(dst, b.base[offset:offset+n])
	return nil
}

// Write copies n bytes from src into the buffer starting at offset. Fails
// with ErrBufferOverrun if offset+n exceeds capacity or overflows. Does not
// itself advance `used` — callers (notably Cursor) decide when used grows.
func (b *Buffer) Write(offset int, src []byte, n int) error {
	if n == 0 {
		return nil
	}
	if src == nil {
		return errs.ErrMemoryError
	}
	if offset < 0 || n < 0 || offset+n < offset || offset+n > b.capacity {
		return errs.ErrBufferOverrun
	}
	copy(b.base[offset:offset+n], src[:n])
	return nil
}

// Swap exchanges the field-level contents (base, capacity, used) of two
// buffers atomically at the call site. This is how the arbitrator hands a
// received frame to the thread that requested it without a memcpy: the
// arbitrator's scratch buffer and the waiting request's codec buffer trade
// places, so the request ends up owning the bytes that were just received.
func Swap(a, b *Buffer) {
	a.base, b.base = b.base, a.base
	a.capacity, b.capacity = b.capacity, a.capacity
	a.used, b.used = b.used, a.used
}
