package codec

import "testing"

func benchmarkFrame(records int) []byte {
	recs := make([][]byte, records)
	for i := range recs {
		recs[i] = recordBytes(uint64(1560166592000+i), byte(i%3), 240, 4, []ioSpec{
			{w: 1, id: 240, v: 1},
			{w: 1, id: 69, v: 2},
			{w: 2, id: 24, v: 160},
			{w: 4, id: 16, v: 123456},
		})
	}
	return frame8E(recs...)
}

func BenchmarkCodec_Decode_1(b *testing.B) {
	c := &Codec{Resolver: testResolver()}
	frame := mustHex(b, sampleFrameHex)
	b.SetBytes(int64(len(frame)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = c.Decode(frame)
	}
}

func BenchmarkCodec_Decode_64(b *testing.B) {
	c := &Codec{Resolver: testResolver(), Interest: NewInterestSet(240, 24)}
	frame := benchmarkFrame(64)
	b.SetBytes(int64(len(frame)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = c.Decode(frame)
	}
}

func BenchmarkCodec_EncodeCommand(b *testing.B) {
	c := &Codec{}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = c.EncodeCommand("getinfo")
	}
}
