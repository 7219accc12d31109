package buffer

import "erpcgo/errs"

// Cursor is a read/write position over a Buffer. Reads advance the position
// and fail past `used`; writes advance the position and grow `used`, but
// only when positioned exactly at `used` — the wire codec is an append-only
// writer, per §4.1/§9: Write never seeks backwards. The frame header is not
// written through a Cursor; transport.Framed sends it from its own array
// ahead of the payload.
type Cursor struct {
	buf      *Buffer
	position int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf *Buffer) *Cursor {
	return &Cursor{buf: buf}
}

// Buffer returns the buffer this cursor is positioned over.
func (c *Cursor) Buffer() *Buffer { return c.buf }

// Position returns the current offset from the buffer's base.
func (c *Cursor) Position() int { return c.position }

// RemainingWritable returns how many bytes may still be written before
// hitting capacity.
func (c *Cursor) RemainingWritable() int { return c.buf.capacity - c.position }

// RemainingReadable returns how many unread payload bytes remain (used -
// position).
func (c *Cursor) RemainingReadable() int { return c.buf.used - c.position }

// Read copies len(dst) bytes from the current position into dst and
// advances the position. Fails with ErrBufferOverrun past capacity, or the
// receive-underrun flavored error past `used`.
func (c *Cursor) Read(dst []byte) error {
	n := len(dst)
	if n == 0 {
		return nil
	}
	if c.position+n > c.buf.capacity {
		return errs.ErrBufferOverrun
	}
	if err := c.buf.Read(c.position, dst, n); err != nil {
		return err
	}
	c.position += n
	return nil
}

// Write copies src into the buffer at the current position, advances the
// position, and grows `used` by len(src). Requires the cursor to sit
// exactly at `used` (append-only); otherwise returns ErrNotAppendPosition.
func (c *Cursor) Write(src []byte) error {
	n := len(src)
	if n == 0 {
		return nil
	}
	if c.position != c.buf.used {
		return errs.ErrNotAppendPosition
	}
	if err := c.buf.Write(c.position, src, n); err != nil {
		return err
	}
	c.position += n
	c.buf.used += n
	return nil
}

// Rewind re-seats the cursor at offset `skipBytes` past the buffer's base,
// without touching `used`. Because Write is append-only, a Write after
// Rewind succeeds only when skipBytes equals `used`.
func (c *Cursor) Rewind(skipBytes int) {
	c.position = skipBytes
}

// ResetForWrite rewinds the cursor to skipBytes and truncates `used` back
// to skipBytes too, so a fresh message can be written into a reused buffer.
func (c *Cursor) ResetForWrite(skipBytes int) {
	c.buf.used = skipBytes
	c.position = skipBytes
}

// ResetForRead rewinds the cursor to skipBytes for reading an already
// populated buffer (used left untouched).
func (c *Cursor) ResetForRead(skipBytes int) {
	c.position = skipBytes
}
