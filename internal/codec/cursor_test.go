package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestCursorReads(t *testing.T) {
	buf := []byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
		0xAA, 0xBB,
	}
	c := newCursor(buf, 0)
	if v := c.U8(); v != 0x01 {
		t.Fatalf("u8 = %#x", v)
	}
	if v := c.U16(); v != 0x0203 {
		t.Fatalf("u16 = %#x", v)
	}
	if v := c.U32(); v != 0x04050607 {
		t.Fatalf("u32 = %#x", v)
	}
	if v := c.U64(); v != 0x08090A0B0C0D0E0F {
		t.Fatalf("u64 = %#x", v)
	}
	if got := c.Bytes(2); !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Fatalf("bytes = %x", got)
	}
	if c.Err() != nil {
		t.Fatalf("err = %v", c.Err())
	}
	if c.Pos() != len(buf) || c.Remaining() != 0 {
		t.Fatalf("pos %d remaining %d", c.Pos(), c.Remaining())
	}
}

func TestCursorOffsetStart(t *testing.T) {
	c := newCursor([]byte{0xFF, 0xFF, 0x12, 0x34}, 2)
	if v := c.U16(); v != 0x1234 {
		t.Fatalf("u16 = %#x", v)
	}
}

func TestCursorStickyError(t *testing.T) {
	c := newCursor([]byte{0x01}, 0)
	if v := c.U16(); v != 0 {
		t.Fatalf("short u16 = %#x, want 0", v)
	}
	first := c.Err()
	if !errors.Is(first, ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", first)
	}
	// Later reads keep returning zeros and the first error sticks.
	if v := c.U64(); v != 0 {
		t.Fatalf("u64 after error = %#x", v)
	}
	if c.Bytes(4) != nil {
		t.Fatal("bytes after error not nil")
	}
	if c.Err() != first {
		t.Fatalf("error replaced: %v", c.Err())
	}
	if c.Pos() != 0 {
		t.Fatalf("pos advanced after error: %d", c.Pos())
	}
}

func TestCursorSkip(t *testing.T) {
	c := newCursor([]byte{1, 2, 3, 4}, 0)
	c.Skip(3)
	if c.Pos() != 3 || c.Err() != nil {
		t.Fatalf("pos %d err %v", c.Pos(), c.Err())
	}
	c.Skip(2)
	if !errors.Is(c.Err(), ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", c.Err())
	}
}
