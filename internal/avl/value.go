package avl

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ValueKind discriminates the wire width a Value was decoded from.
type ValueKind int

const (
	KindU8 ValueKind = iota
	KindU16
	KindU32
	KindU64
	KindBytes
)

// Value is one decoded IO element payload. Fixed-width elements store
// an unsigned integer; variable-width elements store a private byte
// copy. The zero Value is a KindU8 zero.
type Value struct {
	kind ValueKind
	u    uint64
	b    []byte
}

func U8Value(v uint8) Value   { return Value{kind: KindU8, u: uint64(v)} }
func U16Value(v uint16) Value { return Value{kind: KindU16, u: uint64(v)} }
func U32Value(v uint32) Value { return Value{kind: KindU32, u: uint64(v)} }
func U64Value(v uint64) Value { return Value{kind: KindU64, u: v} }

// BytesValue copies p so later buffer reuse cannot alias the value.
func BytesValue(p []byte) Value {
	b := make([]byte, len(p))
	copy(b, p)
	return Value{kind: KindBytes, b: b}
}

func (v Value) Kind() ValueKind { return v.kind }

// Uint returns the integer payload. Zero for KindBytes.
func (v Value) Uint() uint64 { return v.u }

// Bytes returns the raw payload of a KindBytes value, nil otherwise.
// Callers must not mutate the returned slice.
func (v Value) Bytes() []byte {
	if v.kind != KindBytes {
		return nil
	}
	return v.b
}

// Width is the wire width in bytes this value was decoded from.
func (v Value) Width() int {
	switch v.kind {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	default:
		return len(v.b)
	}
}

func (v Value) String() string {
	if v.kind == KindBytes {
		return "0x" + hex.EncodeToString(v.b)
	}
	return fmt.Sprintf("%d", v.u)
}

// MarshalJSON emits integers for fixed-width values and a 0x-prefixed
// hex string for variable-width ones.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindBytes {
		return json.Marshal(v.String())
	}
	return json.Marshal(v.u)
}
