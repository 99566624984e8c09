// Package avl holds the domain types produced by the FMB003 frame
// codecs. Values are immutable after decode; decoders hand ownership
// of the whole tree to the caller.
package avl

import (
	"encoding/json"
	"time"
)

// Status reports the outcome of the Codec 8E decode gates.
type Status int

const (
	NoError Status = iota
	CodecIncompatible
	CrcFailed
)

func (s Status) String() string {
	switch s {
	case NoError:
		return "ok"
	case CodecIncompatible:
		return "codec_incompatible"
	case CrcFailed:
		return "crc_failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Severity is the per-record priority code. Unmapped wire values fold
// to NotDetermined, which also marks frames without records.
type Severity int

const (
	NotDetermined Severity = -1
	Low           Severity = 0
	High          Severity = 1
	Panic         Severity = 2
)

// SeverityFromByte maps the 1-byte wire code to a Severity.
func SeverityFromByte(b byte) Severity {
	switch b {
	case 0:
		return Low
	case 1:
		return High
	case 2:
		return Panic
	default:
		return NotDetermined
	}
}

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case High:
		return "high"
	case Panic:
		return "panic"
	default:
		return "not_determined"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Parameter is the static descriptor for one AVL ID, owned by the
// parameter table and referenced by decoded events.
type Parameter struct {
	ID          uint16  `json:"id"`
	Name        string  `json:"name"`
	Bytes       int     `json:"bytes"`
	Type        string  `json:"type"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Multiplier  float64 `json:"multiplier"`
	Unit        string  `json:"unit,omitempty"`
	Group       string  `json:"group,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Event is one typed parameter reading inside a record.
type Event struct {
	ID      uint16    `json:"id"`
	Name    string    `json:"name"`
	Value   Value     `json:"value"`
	Matched bool      `json:"matched"`
	Param   Parameter `json:"param"`
}

// Record is one timestamped location and event report inside a frame.
// Timestamp stays raw epoch milliseconds as received; presentation
// helpers derive calendar times without touching the stored value.
type Record struct {
	ID        uint16   `json:"id"`
	Timestamp uint64   `json:"timestamp_ms"`
	Severity  Severity `json:"severity"`
	TotalIo   int      `json:"total_io"`
	MatchedIo int      `json:"matched_io"`
	Events    []Event  `json:"events"`
}

// Time returns the record timestamp as UTC.
func (r Record) Time() time.Time { return time.UnixMilli(int64(r.Timestamp)).UTC() }

// displayZone is the fixed UTC+2 offset used by the operator tooling.
var displayZone = time.FixedZone("UTC+2", 2*60*60)

// DisplayTime renders the timestamp in the fixed UTC+2 display zone.
func (r Record) DisplayTime() string {
	return time.UnixMilli(int64(r.Timestamp)).In(displayZone).Format("2006-01-02 15:04:05")
}

// Frame is one decoded Codec 8E transmission. When Status is not
// NoError the semantic fields are zero and HighestPriority is
// NotDetermined; a structurally broken input never yields a Frame at
// all. DeclaredRecords carries the header count as received so callers
// can audit it against len(Records); the decoder itself does not
// cross-check the two.
type Frame struct {
	Status          Status   `json:"status"`
	DataLength      uint32   `json:"data_length"`
	DeclaredRecords int      `json:"declared_records"`
	Records         []Record `json:"records"`
	NumberOfEvents  int      `json:"number_of_events"`
	HighestPriority Severity `json:"highest_priority"`
}

// NumberOfRecords is the count of records actually parsed.
func (f Frame) NumberOfRecords() int { return len(f.Records) }

// CommandResponse is one decoded Codec 12 reply.
type CommandResponse struct {
	DataSize uint32 `json:"data_size"`
	Quantity uint8  `json:"quantity"`
	Type     uint8  `json:"type"`
	Text     string `json:"text"`
}
