// Package serial turns the byte stream of a capture port into whole
// framed transmissions for the decode pipeline.
package serial

import (
	"bytes"
	"encoding/binary"

	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
)

// Scanner extracts framed transmissions from a raw capture stream.
type Scanner struct{}

const (
	headerLen  = 8 // 4 preamble + 4 data length
	trailerLen = 4
	minDataLen = 3
)

// CompactBuffer reclaims consumed prefix capacity when underlying buffer
// grows too large relative to unread bytes. It returns true if compaction
// occurred. Thresholds chosen to avoid excessive copying.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	// If buffer size < 1KB, skip.
	if len(data) < 1024 {
		return false
	}
	// If unread < 25% of capacity, compact.
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// Scan consumes in and hands every complete transmission to out as a
// standalone copy. Partial trailing data stays buffered until more
// bytes arrive; a nil return means the scanner wants more input.
//
// Example transmission (one Codec 8E record):
//
//	00 00 00 00   preamble
//	00 00 00 4A   data length = 74
//	8E 01 ...     codec tag, records
//	00 00 29 94   CRC-16 over the 74 data bytes
//
// The checksum doubles as the alignment check: real telemetry is full
// of zero runs, so a preamble match alone proves nothing.
func (Scanner) Scan(in *bytes.Buffer, out func(frame []byte)) error {
	var preamble [4]byte
	for {
		_ = CompactBuffer(in)
		data := in.Bytes()
		if len(data) < headerLen {
			return nil
		}

		// align to preamble
		i := bytes.Index(data, preamble[:])
		if i < 0 {
			// keep the last three bytes in case the next chunk
			// completes a preamble split across reads
			if in.Len() > 3 {
				var tail [3]byte
				copy(tail[:], data[len(data)-3:])
				in.Reset()
				_, _ = in.Write(tail[:])
			}
			return nil
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		size := binary.BigEndian.Uint32(data[4:8])
		if size < minDataLen || size > codec.MaxDataLen {
			// malformed length; advance one byte to resync
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		req := headerLen + int(size) + trailerLen
		if len(data) < req {
			return nil
		}

		if !codec.VerifyFrame(data[:req]) {
			// damaged or misaligned; shift one byte and rescan
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		frame := make([]byte, req)
		copy(frame, data[:req])
		out(frame)
		metrics.IncSerialRx()
		in.Next(req)
	}
}
