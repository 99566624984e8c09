package codec

import (
	"testing"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
)

// FuzzDecode8E ensures the telemetry decoder never panics and never
// leaks partial data on arbitrary input.
func FuzzDecode8E(f *testing.F) {
	sample := mustHex(f, sampleFrameHex)
	f.Add(sample)
	f.Add(sample[:20])
	f.Add(frame8E(recordBytes(1, 2, 240, 1, []ioSpec{{w: 1, id: 240, v: 1}})))
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 2, 0x8E, 5})
	c := &Codec{Resolver: testResolver(), Interest: NewInterestSet(240)}
	f.Fuzz(func(t *testing.T, data []byte) {
		fr, err := c.Decode(data)
		if err != nil {
			if fr.NumberOfRecords() != 0 || fr.NumberOfEvents != 0 {
				t.Fatalf("partial frame on error: %+v", fr)
			}
			return
		}
		if fr.Status != avl.NoError && fr.NumberOfRecords() != 0 {
			t.Fatalf("records on gate failure %v", fr.Status)
		}
		for _, rec := range fr.Records {
			if rec.MatchedIo > len(rec.Events) {
				t.Fatalf("matched %d > events %d", rec.MatchedIo, len(rec.Events))
			}
		}
	})
}

// FuzzDecodeResponse ensures the command response decoder doesn't
// panic with random input.
func FuzzDecodeResponse(f *testing.F) {
	f.Add(mustHex(f, responseFrameHex))
	f.Add(mustHex(f, getinfoFrameHex))
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 1, 0x0C})
	c := &Codec{}
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = c.DecodeResponse(data)
	})
}
