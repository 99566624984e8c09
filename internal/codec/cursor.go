package codec

import (
	"encoding/binary"
	"fmt"
)

// cursor is a sequential big-endian reader over a frame payload.
// The first short read latches an error; every later read returns
// zero values so decode loops can defer the error check.
type cursor struct {
	buf []byte
	pos int
	err error
}

func newCursor(buf []byte, pos int) *cursor { return &cursor{buf: buf, pos: pos} }

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.pos+n > len(c.buf) {
		c.err = fmt.Errorf("truncated at offset %d (need %d): %w", c.pos, n, ErrMalformedFrame)
		return false
	}
	return true
}

func (c *cursor) U8() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.buf[c.pos]
	c.pos++
	return v
}

func (c *cursor) U16() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) U32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) U64() uint64 {
	if !c.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v
}

// Bytes returns a view into the underlying buffer; callers copy if
// they retain it past the decode call.
func (c *cursor) Bytes(n int) []byte {
	if !c.need(n) {
		return nil
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v
}

func (c *cursor) Skip(n int) {
	if !c.need(n) {
		return
	}
	c.pos += n
}

func (c *cursor) Pos() int       { return c.pos }
func (c *cursor) Remaining() int { return len(c.buf) - c.pos }
func (c *cursor) Err() error     { return c.err }
