// Package codec implements the FMB003 wire codecs: Codec 8E telemetry
// decode, Codec 12 command encode/decode, and the shared CRC-16/ARC
// integrity check. Inputs are untrusted; every parse is bounds-checked
// and a structurally broken frame never yields a partial result.
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
)

const (
	// Codec8ETag identifies an extended telemetry frame.
	Codec8ETag = 0x8E
	// Codec12Tag identifies a command or command-response frame.
	Codec12Tag = 0x0C
	// MaxDataLen bounds the header data-length field of any frame.
	MaxDataLen = 1280

	// headerLen covers the zero preamble and the data-length field.
	headerLen = 8
	// minFrameLen is header plus the trailing 4-byte checksum field.
	minFrameLen = headerLen + 4

	// recordsOffset is where Codec 8E records start: header, codec
	// tag, record count.
	recordsOffset = 10
	// gpsElementLen is the opaque positioning block inside a record.
	gpsElementLen = 15
)

// ErrMalformedFrame is returned when a frame is structurally broken:
// truncated mid-record, shorter than the fixed layout, or otherwise
// impossible to parse. It is a hard error, unlike the checksum and
// codec gates which Decode reports through the frame status.
var ErrMalformedFrame = errors.New("malformed frame")

// Resolver maps an AVL parameter ID to its static descriptor.
type Resolver interface {
	Lookup(id uint16) (avl.Parameter, bool)
}

// InterestSet is the set of parameter IDs an operator wants decoded
// events for. The empty set means no filtering at all.
type InterestSet map[uint16]struct{}

// NewInterestSet builds a set from the given IDs.
func NewInterestSet(ids ...uint16) InterestSet {
	s := make(InterestSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s InterestSet) Contains(id uint16) bool {
	_, ok := s[id]
	return ok
}

// Codec decodes Codec 8E frames and builds Codec 12 command frames.
// Safe for concurrent use once configured; Decode never mutates the
// input buffer.
type Codec struct {
	// Resolver supplies parameter descriptors. Events whose ID the
	// resolver does not know are skipped silently. A nil resolver
	// skips every event.
	Resolver Resolver
	// Interest filters events by parameter ID. Empty means keep all
	// resolvable events with Matched=false.
	Interest InterestSet
	// KeepUnmatched retains events outside a non-empty interest set
	// instead of dropping them.
	KeepUnmatched bool
}

// Decode parses one complete Codec 8E frame. The codec-tag and
// checksum gates report through Frame.Status with a nil error;
// structural damage returns ErrMalformedFrame and no frame.
func (c *Codec) Decode(frame []byte) (avl.Frame, error) {
	if len(frame) < minFrameLen {
		metrics.IncMalformed()
		return avl.Frame{}, fmt.Errorf("codec8e: frame too short (%d bytes): %w", len(frame), ErrMalformedFrame)
	}
	if tag := frame[headerLen]; tag != Codec8ETag {
		metrics.IncCodecMismatch()
		return avl.Frame{Status: avl.CodecIncompatible, HighestPriority: avl.NotDetermined}, nil
	}
	if !VerifyFrame(frame) {
		metrics.IncCrcFailure()
		return avl.Frame{Status: avl.CrcFailed, HighestPriority: avl.NotDetermined}, nil
	}
	if len(frame) < recordsOffset+1+4 {
		metrics.IncMalformed()
		return avl.Frame{}, fmt.Errorf("codec8e: no room for records: %w", ErrMalformedFrame)
	}

	f := avl.Frame{
		Status:          avl.NoError,
		DataLength:      binary.BigEndian.Uint32(frame[4:headerLen]),
		DeclaredRecords: int(frame[9]),
		HighestPriority: avl.NotDetermined,
	}

	// The cursor stops before the checksum field so record grammar
	// can never consume it. The trailing record-count byte before the
	// checksum is left unread on purpose.
	cur := newCursor(frame[:len(frame)-4], recordsOffset)
	records := make([]avl.Record, 0, f.DeclaredRecords)
	for i := 0; i < f.DeclaredRecords && cur.Err() == nil; i++ {
		rec := c.decodeRecord(cur)
		if cur.Err() != nil {
			break
		}
		records = append(records, rec)
	}
	if err := cur.Err(); err != nil {
		metrics.IncMalformed()
		return avl.Frame{}, fmt.Errorf("codec8e: record %d: %w", len(records), err)
	}

	f.Records = records
	for i := range records {
		f.NumberOfEvents += len(records[i].Events)
		if records[i].Severity > f.HighestPriority {
			f.HighestPriority = records[i].Severity
		}
	}

	metrics.IncFrameDecoded()
	metrics.AddRecords(len(records))
	metrics.AddEvents(f.NumberOfEvents)
	return f, nil
}

// DecodeHex decodes a frame from a hex dump. ASCII whitespace is
// tolerated anywhere in the input.
func (c *Codec) DecodeHex(s string) (avl.Frame, error) {
	raw, err := hex.DecodeString(stripSpace(s))
	if err != nil {
		metrics.IncMalformed()
		return avl.Frame{}, fmt.Errorf("codec8e: hex: %w", err)
	}
	return c.Decode(raw)
}

func (c *Codec) decodeRecord(cur *cursor) avl.Record {
	rec := avl.Record{
		Timestamp: cur.U64(),
		Severity:  avl.SeverityFromByte(cur.U8()),
	}
	cur.Skip(gpsElementLen)
	rec.ID = cur.U16()
	rec.TotalIo = int(cur.U16())

	// Fixed-width buckets in wire order: 1, 2, 4 and 8 byte values.
	for _, w := range [...]int{1, 2, 4, 8} {
		n := int(cur.U16())
		for j := 0; j < n && cur.Err() == nil; j++ {
			id := cur.U16()
			var v avl.Value
			switch w {
			case 1:
				v = avl.U8Value(cur.U8())
			case 2:
				v = avl.U16Value(cur.U16())
			case 4:
				v = avl.U32Value(cur.U32())
			case 8:
				v = avl.U64Value(cur.U64())
			}
			c.appendEvent(&rec, id, v)
		}
	}

	// Variable-width bucket: count, then a shared width, then the
	// entries. A zero count carries no width field.
	if n := int(cur.U16()); n > 0 {
		x := int(cur.U16())
		for j := 0; j < n && cur.Err() == nil; j++ {
			id := cur.U16()
			raw := cur.Bytes(x)
			if cur.Err() != nil {
				break
			}
			c.appendEvent(&rec, id, avl.BytesValue(raw))
		}
	}
	return rec
}

func (c *Codec) appendEvent(rec *avl.Record, id uint16, v avl.Value) {
	if c.Resolver == nil {
		return
	}
	p, ok := c.Resolver.Lookup(id)
	if !ok {
		return // unknown parameter, skip silently
	}
	matched := false
	if len(c.Interest) > 0 {
		matched = c.Interest.Contains(id)
		if !matched && !c.KeepUnmatched {
			return
		}
	}
	if matched {
		rec.MatchedIo++
	}
	rec.Events = append(rec.Events, avl.Event{ID: id, Name: p.Name, Value: v, Matched: matched, Param: p})
}

// stripSpace removes ASCII whitespace so pasted hex dumps with line
// breaks decode cleanly.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
