package codec

import "testing"

func TestCrc16KnownVectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"check string", []byte("123456789"), 0xBB3D},
		{"empty", nil, 0x0000},
		{"single zero", []byte{0x00}, 0x0000},
		{"single ff", []byte{0xFF}, 0x4040},
	}
	for _, c := range cases {
		if got := Crc16(c.in); got != c.want {
			t.Errorf("%s: crc = 0x%04X, want 0x%04X", c.name, got, c.want)
		}
	}
}

func TestCrc16SampleRegion(t *testing.T) {
	frame := mustHex(t, sampleFrameHex)
	if got := Crc16(frame[8 : len(frame)-4]); got != 0x2994 {
		t.Fatalf("region crc = 0x%04X, want 0x2994", got)
	}
}

func TestVerifyFrame(t *testing.T) {
	if !VerifyFrame(mustHex(t, sampleFrameHex)) {
		t.Fatal("sample frame failed verification")
	}
	if !VerifyFrame(mustHex(t, getinfoFrameHex)) {
		t.Fatal("command frame failed verification")
	}
	if !VerifyFrame(mustHex(t, responseFrameHex)) {
		t.Fatal("response frame failed verification")
	}
	if VerifyFrame(nil) || VerifyFrame(make([]byte, 11)) {
		t.Fatal("short input passed verification")
	}
}

// Any single flipped bit in the checksummed region or the checksum
// field itself must fail verification.
func TestVerifyFrameBitFlips(t *testing.T) {
	orig := mustHex(t, sampleFrameHex)
	frame := make([]byte, len(orig))
	for i := 8; i < len(orig); i++ {
		for bit := 0; bit < 8; bit++ {
			copy(frame, orig)
			frame[i] ^= 1 << bit
			if VerifyFrame(frame) {
				t.Fatalf("flip byte %d bit %d passed verification", i, bit)
			}
		}
	}
}

func BenchmarkCrc16(b *testing.B) {
	frame := mustHex(b, sampleFrameHex)
	region := frame[8 : len(frame)-4]
	b.SetBytes(int64(len(region)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Crc16(region)
	}
}
