package buffer

import "testing"

func TestCursorAppendOnlyWrite(t *testing.T) {
	buf := New(make([]byte, 16))
	c := NewCursor(buf)

	if err := c.Write([]byte("ab")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := c.Write([]byte("cd")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if buf.Used() != 4 {
		t.Fatalf("used = %d, want 4", buf.Used())
	}

	// Seeking backwards and writing again must fail: writes are append-only.
	c.ResetForRead(0)
	if err := c.Write([]byte("zz")); err == nil {
		t.Fatal("expected ErrNotAppendPosition, got nil")
	}
}

func TestCursorResetIdempotence(t *testing.T) {
	buf := New(make([]byte, 16))
	c := NewCursor(buf)
	c.Write([]byte("hello world"))

	c.ResetForRead(3)
	pos1 := c.Position()
	c.ResetForRead(3)
	pos2 := c.Position()

	if pos1 != pos2 || pos1 != 3 {
		t.Errorf("ResetForRead not idempotent: %d vs %d", pos1, pos2)
	}

	dst := make([]byte, 2)
	if err := c.Read(dst); err != nil {
		t.Fatalf("Read after reset failed: %v", err)
	}
	if string(dst) != "lo" {
		t.Errorf("got %q, want %q", dst, "lo")
	}
}

func TestCursorReadPastCapacity(t *testing.T) {
	buf := New(make([]byte, 4))
	c := NewCursor(buf)
	c.Write([]byte("ab"))
	c.ResetForRead(0)

	dst := make([]byte, 8)
	if err := c.Read(dst); err == nil {
		t.Fatal("expected BufferOverrun reading past capacity")
	}
}
