package codec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
)

// Codec 12 message types.
const (
	commandTypeRequest  = 0x05
	commandTypeResponse = 0x06
)

// ErrCodecMismatch is returned when a response frame does not carry
// the Codec 12 tag.
var ErrCodecMismatch = errors.New("codec12: codec mismatch")

// ErrChecksum is returned when a response frame fails the CRC check.
var ErrChecksum = errors.New("codec12: checksum mismatch")

// EncodeCommand builds a complete Codec 12 command frame around the
// given GPRS command text, checksum included.
func (c *Codec) EncodeCommand(cmd string) []byte {
	n := len(cmd)
	dataSize := 8 + n // tag, quantity, type, 4-byte size, text, quantity
	b := make([]byte, headerLen+dataSize+4)
	binary.BigEndian.PutUint32(b[4:8], uint32(dataSize))
	b[8] = Codec12Tag
	b[9] = 0x01
	b[10] = commandTypeRequest
	binary.BigEndian.PutUint32(b[11:15], uint32(n))
	copy(b[15:], cmd)
	b[15+n] = 0x01
	binary.BigEndian.PutUint32(b[len(b)-4:], uint32(Crc16(b[8:len(b)-4])))
	return b
}

// EncodeCommandHex is EncodeCommand rendered as a lowercase hex dump.
func (c *Codec) EncodeCommandHex(cmd string) string {
	return hex.EncodeToString(c.EncodeCommand(cmd))
}

// DecodeResponse parses one complete Codec 12 response frame. Unlike
// telemetry decode, every failure here is a hard error: commands have
// a waiting caller and a silent status would strand it.
func (c *Codec) DecodeResponse(frame []byte) (avl.CommandResponse, error) {
	if len(frame) < minFrameLen {
		return avl.CommandResponse{}, fmt.Errorf("codec12: frame too short (%d bytes): %w", len(frame), ErrMalformedFrame)
	}
	if tag := frame[headerLen]; tag != Codec12Tag {
		return avl.CommandResponse{}, fmt.Errorf("%w (tag 0x%02X)", ErrCodecMismatch, tag)
	}
	if !VerifyFrame(frame) {
		return avl.CommandResponse{}, ErrChecksum
	}
	if len(frame) < 15 {
		return avl.CommandResponse{}, fmt.Errorf("codec12: no room for payload size: %w", ErrMalformedFrame)
	}
	payloadSize := int(binary.BigEndian.Uint32(frame[11:15]))
	// Payload, quantity trailer and checksum must all fit.
	if payloadSize < 0 || payloadSize > len(frame)-(15+1+4) {
		return avl.CommandResponse{}, fmt.Errorf("codec12: payload size %d exceeds frame: %w", payloadSize, ErrMalformedFrame)
	}
	resp := avl.CommandResponse{
		DataSize: binary.BigEndian.Uint32(frame[4:8]),
		Quantity: frame[9],
		Type:     frame[10],
		Text:     string(frame[15 : 15+payloadSize]),
	}
	metrics.IncCommandResponse()
	return resp, nil
}

// DecodeResponseHex decodes a response from a hex dump, tolerating
// ASCII whitespace.
func (c *Codec) DecodeResponseHex(s string) (avl.CommandResponse, error) {
	raw, err := hex.DecodeString(stripSpace(s))
	if err != nil {
		return avl.CommandResponse{}, fmt.Errorf("codec12: hex: %w", err)
	}
	return c.DecodeResponse(raw)
}
