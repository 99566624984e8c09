package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeCommandGetinfo(t *testing.T) {
	c := &Codec{}
	got := c.EncodeCommand("getinfo")
	want := mustHex(t, getinfoFrameHex)
	if !bytes.Equal(got, want) {
		t.Fatalf("frame:\n got %x\nwant %x", got, want)
	}
	if hexed := c.EncodeCommandHex("getinfo"); hexed != strings.ToLower(getinfoFrameHex) {
		t.Fatalf("hex = %s", hexed)
	}
}

func TestEncodeCommandLayout(t *testing.T) {
	c := &Codec{}
	cmd := "setdigout 11"
	frame := c.EncodeCommand(cmd)
	if len(frame) != 8+8+len(cmd)+4 {
		t.Fatalf("frame length = %d", len(frame))
	}
	if !VerifyFrame(frame) {
		t.Fatal("encoded frame fails checksum verification")
	}
	if frame[8] != Codec12Tag || frame[9] != 0x01 || frame[10] != commandTypeRequest {
		t.Fatalf("header bytes = % x", frame[8:11])
	}
	// Every encoded command parses back, type byte aside.
	resp, err := c.DecodeResponse(frame)
	if err != nil {
		t.Fatalf("decode own frame: %v", err)
	}
	if resp.Text != cmd {
		t.Fatalf("text = %q, want %q", resp.Text, cmd)
	}
	if resp.Type != commandTypeRequest || resp.Quantity != 1 {
		t.Fatalf("type %#x quantity %d", resp.Type, resp.Quantity)
	}
	if resp.DataSize != uint32(8+len(cmd)) {
		t.Fatalf("data size = %d, want %d", resp.DataSize, 8+len(cmd))
	}
}

func TestDecodeResponseOfficial(t *testing.T) {
	c := &Codec{}
	resp, err := c.DecodeResponse(mustHex(t, responseFrameHex))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DataSize != 55 {
		t.Errorf("data size = %d, want 55", resp.DataSize)
	}
	if resp.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", resp.Quantity)
	}
	if resp.Type != commandTypeResponse {
		t.Errorf("type = %#x, want 0x06", resp.Type)
	}
	if resp.Text != responseText {
		t.Errorf("text = %q, want %q", resp.Text, responseText)
	}
}

func TestDecodeResponseHexWhitespace(t *testing.T) {
	c := &Codec{}
	spaced := responseFrameHex[:10] + "\n " + responseFrameHex[10:]
	resp, err := c.DecodeResponseHex(spaced)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != responseText {
		t.Fatalf("text = %q", resp.Text)
	}
}

func TestDecodeResponseChecksum(t *testing.T) {
	frame := mustHex(t, responseFrameHex)
	frame[20] ^= 0x40
	c := &Codec{}
	if _, err := c.DecodeResponse(frame); !errors.Is(err, ErrChecksum) {
		t.Fatalf("err = %v, want ErrChecksum", err)
	}
}

func TestDecodeResponseCodecMismatch(t *testing.T) {
	c := &Codec{}
	if _, err := c.DecodeResponse(mustHex(t, sampleFrameHex)); !errors.Is(err, ErrCodecMismatch) {
		t.Fatalf("err = %v, want ErrCodecMismatch", err)
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	c := &Codec{}
	if _, err := c.DecodeResponse(make([]byte, 5)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("short: err = %v, want ErrMalformedFrame", err)
	}
	// Valid checksum but no room for the payload size field.
	if _, err := c.DecodeResponse(wrapFrame([]byte{Codec12Tag})); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("headerless: err = %v, want ErrMalformedFrame", err)
	}
	// Payload size pointing past the end of the frame.
	region := []byte{Codec12Tag, 0x01, 0x06, 0x00, 0x00, 0x00, 0x64, 'h', 'i', 0x01}
	if _, err := c.DecodeResponse(wrapFrame(region)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("overrun: err = %v, want ErrMalformedFrame", err)
	}
}
