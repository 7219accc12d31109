// Package codec implements the typed encode/decode layer described in
// §4.2: little-endian primitives, length-prefixed strings/binaries/lists,
// discriminated unions, nullable flags, and the packed message header —
// all behind a sticky-first-error status so call sites can chain a long
// sequence of writes or reads and check the outcome once, at a natural
// boundary (end of request construction, before Send; end of reply
// parsing, before returning to the caller).
//
// Grounded on the prior implementation's codec package (its pluggable
// Codec/CodecType/GetCodec), generalized from "encode a whole RPCMessage
// struct at once" to "encode one typed field at a time over a cursor",
// since §4.2 specifies a streaming field-by-field wire format rather than
// a single struct marshal.
package codec

import (
	"encoding/binary"
	"math"

	"erpcgo/buffer"
	"erpcgo/errs"
)

// Codec pairs a cursor with a sticky status. Every public Write*/Read*
// method is a no-op once status is non-nil; updateStatus only takes hold
// while status is still nil, so the first error reported is the one that
// sticks until Reset.
type Codec struct {
	cursor *buffer.Cursor
	status error
}

// New wraps cur in a fresh, successful-status Codec.
func New(cur *buffer.Cursor) *Codec {
	return &Codec{cursor: cur}
}

// Cursor returns the underlying cursor, for transports that need to read
// the raw buffer (e.g. to compute a CRC over the payload).
func (c *Codec) Cursor() *buffer.Cursor { return c.cursor }

// Status returns the sticky status: nil if every operation since the last
// Reset has succeeded, otherwise the first error encountered.
func (c *Codec) Status() error { return c.status }

// IsOk reports whether the codec's status is still successful.
func (c *Codec) IsOk() bool { return c.status == nil }

func (c *Codec) updateStatus(err error) {
	if c.status == nil {
		c.status = err
	}
}

// ResetForWrite clears status and re-seats the cursor skipBytes past the
// buffer's base, truncating `used` back to skipBytes — used to leave room
// for a framing prefix (the 6-byte frame header) before writing a new
// message.
func (c *Codec) ResetForWrite(skipBytes int) {
	c.cursor.ResetForWrite(skipBytes)
	c.status = nil
}

// ResetForRead clears status and re-seats the cursor skipBytes past the
// buffer's base for reading an already-populated buffer.
func (c *Codec) ResetForRead(skipBytes int) {
	c.cursor.ResetForRead(skipBytes)
	c.status = nil
}

// --- message header ---------------------------------------------------

// StartWriteMessage packs and writes the message header plus sequence
// number (§4.2).
func (c *Codec) StartWriteMessage(kind MessageType, serviceID, methodID uint8, sequence uint32) {
	if !c.IsOk() {
		return
	}
	word := packHeader(Header{Version: CurrentVersion, Type: kind, ServiceID: serviceID, MethodID: methodID})
	c.WriteUint32(word)
	c.WriteUint32(sequence)
}

// StartReadMessage reads and unpacks the message header plus sequence
// number, failing with ErrInvalidMessageVersion on a version mismatch.
func (c *Codec) StartReadMessage() Header {
	if !c.IsOk() {
		return Header{}
	}
	word := c.ReadUint32()
	seq := c.ReadUint32()
	if !c.IsOk() {
		return Header{}
	}
	h := unpackHeader(word)
	h.Sequence = seq
	if h.Version != CurrentVersion {
		c.updateStatus(errs.ErrInvalidMessageVersion)
		return Header{}
	}
	return h
}

// --- primitives ---------------------------------------------------------

func (c *Codec) WriteBool(v bool) {
	if !c.IsOk() {
		return
	}
	var b byte
	if v {
		b = 1
	}
	c.updateStatus(c.cursor.Write([]byte{b}))
}

func (c *Codec) ReadBool() bool {
	if !c.IsOk() {
		return false
	}
	var buf [1]byte
	c.updateStatus(c.cursor.Read(buf[:]))
	return buf[0] != 0
}

func (c *Codec) WriteUint8(v uint8) {
	if !c.IsOk() {
		return
	}
	c.updateStatus(c.cursor.Write([]byte{v}))
}

func (c *Codec) ReadUint8() uint8 {
	if !c.IsOk() {
		return 0
	}
	var buf [1]byte
	c.updateStatus(c.cursor.Read(buf[:]))
	return buf[0]
}

func (c *Codec) WriteUint16(v uint16) {
	if !c.IsOk() {
		return
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	c.updateStatus(c.cursor.Write(buf[:]))
}

func (c *Codec) ReadUint16() uint16 {
	if !c.IsOk() {
		return 0
	}
	var buf [2]byte
	c.updateStatus(c.cursor.Read(buf[:]))
	return binary.LittleEndian.Uint16(buf[:])
}

func (c *Codec) WriteUint32(v uint32) {
	if !c.IsOk() {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.updateStatus(c.cursor.Write(buf[:]))
}

func (c *Codec) ReadUint32() uint32 {
	if !c.IsOk() {
		return 0
	}
	var buf [4]byte
	c.updateStatus(c.cursor.Read(buf[:]))
	return binary.LittleEndian.Uint32(buf[:])
}

func (c *Codec) WriteUint64(v uint64) {
	if !c.IsOk() {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	c.updateStatus(c.cursor.Write(buf[:]))
}

func (c *Codec) ReadUint64() uint64 {
	if !c.IsOk() {
		return 0
	}
	var buf [8]byte
	c.updateStatus(c.cursor.Read(buf[:]))
	return binary.LittleEndian.Uint64(buf[:])
}

func (c *Codec) WriteInt8(v int8)   { c.WriteUint8(uint8(v)) }
func (c *Codec) ReadInt8() int8     { return int8(c.ReadUint8()) }
func (c *Codec) WriteInt16(v int16) { c.WriteUint16(uint16(v)) }
func (c *Codec) ReadInt16() int16   { return int16(c.ReadUint16()) }
func (c *Codec) WriteInt32(v int32) { c.WriteUint32(uint32(v)) }
func (c *Codec) ReadInt32() int32   { return int32(c.ReadUint32()) }
func (c *Codec) WriteInt64(v int64) { c.WriteUint64(uint64(v)) }
func (c *Codec) ReadInt64() int64   { return int64(c.ReadUint64()) }

func (c *Codec) WriteFloat32(v float32) { c.WriteUint32(math.Float32bits(v)) }
func (c *Codec) ReadFloat32() float32   { return math.Float32frombits(c.ReadUint32()) }
func (c *Codec) WriteFloat64(v float64) { c.WriteUint64(math.Float64bits(v)) }
func (c *Codec) ReadFloat64() float64   { return math.Float64frombits(c.ReadUint64()) }

// --- strings & binaries ---------------------------------------------------

// WriteString writes a uint32 length prefix followed by the UTF-8 bytes of
// s, with no trailing NUL (§4.2).
func (c *Codec) WriteString(s string) {
	if !c.IsOk() {
		return
	}
	c.WriteUint32(uint32(len(s)))
	if !c.IsOk() {
		return
	}
	c.updateStatus(c.cursor.Write([]byte(s)))
}

func (c *Codec) ReadString() string {
	if !c.IsOk() {
		return ""
	}
	n := c.ReadUint32()
	if !c.IsOk() {
		return ""
	}
	buf := make([]byte, n)
	c.updateStatus(c.cursor.Read(buf))
	return string(buf)
}

// WriteBinary writes a uint32 length prefix followed by the raw bytes —
// identical wire layout to WriteString, interpreted as opaque bytes.
func (c *Codec) WriteBinary(data []byte) {
	if !c.IsOk() {
		return
	}
	c.WriteUint32(uint32(len(data)))
	if !c.IsOk() {
		return
	}
	c.updateStatus(c.cursor.Write(data))
}

func (c *Codec) ReadBinary() []byte {
	if !c.IsOk() {
		return nil
	}
	n := c.ReadUint32()
	if !c.IsOk() {
		return nil
	}
	buf := make([]byte, n)
	c.updateStatus(c.cursor.Read(buf))
	return buf
}

// --- lists -----------------------------------------------------------------

// WriteList writes a uint32 length prefix followed by each element encoded
// with elem, in order — homogeneous lists only, per §4.2.
func WriteList[T any](c *Codec, items []T, elem func(*Codec, T)) {
	if !c.IsOk() {
		return
	}
	c.WriteUint32(uint32(len(items)))
	for _, item := range items {
		if !c.IsOk() {
			return
		}
		elem(c, item)
	}
}

// ReadList reads a uint32 length prefix followed by that many elements,
// each decoded with elem.
func ReadList[T any](c *Codec, elem func(*Codec) T) []T {
	if !c.IsOk() {
		return nil
	}
	n := c.ReadUint32()
	if !c.IsOk() || n == 0 {
		return nil
	}
	items := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		if !c.IsOk() {
			return items
		}
		items = append(items, elem(c))
	}
	return items
}

// --- unions & nullables ------------------------------------------------

// WriteUnionDiscriminator writes the int32 arm selector that precedes a
// union's fields.
func (c *Codec) WriteUnionDiscriminator(d int32) { c.WriteInt32(d) }

// ReadUnionDiscriminator reads the int32 arm selector.
func (c *Codec) ReadUnionDiscriminator() int32 { return c.ReadInt32() }

// WriteNullableFlag writes the one-byte presence flag that precedes a
// nullable value: 0 = present, 1 = null. When absent, the caller writes no
// further bytes for that value.
func (c *Codec) WriteNullableFlag(present bool) {
	if present {
		c.WriteUint8(0)
	} else {
		c.WriteUint8(1)
	}
}

// ReadNullableFlag reads the presence flag and reports whether a value
// follows.
func (c *Codec) ReadNullableFlag() (present bool) {
	return c.ReadUint8() == 0
}

// --- callback references -------------------------------------------------

// CallbackTable maps a one-byte wire index to an application-supplied
// function value. The IDL guarantees identical tables on both sides of the
// link; Go has no portable raw function-pointer ABI to encode directly, so
// the table is the application's own registry rather than a raw address.
type CallbackTable map[uint8]any

// WriteCallback writes the table index whose entry equals fn, failing with
// ErrUnknownCallback if fn is not registered in table.
func (c *Codec) WriteCallback(table CallbackTable, fn any) {
	if !c.IsOk() {
		return
	}
	for idx, candidate := range table {
		if candidate == fn {
			c.WriteUint8(idx)
			return
		}
	}
	c.updateStatus(errs.ErrUnknownCallback)
}

// ReadCallback reads a table index and resolves it against table, failing
// with ErrUnknownCallback if the index is not registered.
func (c *Codec) ReadCallback(table CallbackTable) any {
	if !c.IsOk() {
		return nil
	}
	idx := c.ReadUint8()
	if !c.IsOk() {
		return nil
	}
	fn, ok := table[idx]
	if !ok {
		c.updateStatus(errs.ErrUnknownCallback)
		return nil
	}
	return fn
}
