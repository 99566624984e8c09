package server

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/oleelnes/FMB003-server-public/internal/hub"
)

// startInMemoryServer launches the server on :0 for benchmarks.
func startInMemoryServer(b *testing.B) (*Server, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	cdc := &codec.Codec{}
	srv := NewServer(WithHub(hub.New()), WithCodec(cdc), WithCommandCodec(cdc))
	go func() { _ = srv.Serve(ctx) }()
	select {
	case <-srv.Ready():
	case <-time.After(time.Second):
		b.Fatalf("server not ready")
	}
	return srv, cancel
}

// benchHandshake identifies as a tracker on a fresh connection.
func benchHandshake(b *testing.B, addr string) net.Conn {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		b.Fatalf("dial: %v", err)
	}
	conn.SetDeadline(time.Now().Add(time.Second))
	imei := []byte(testIMEI)
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(imei)))
	if _, err := conn.Write(lb[:]); err != nil {
		b.Fatalf("handshake write: %v", err)
	}
	if _, err := conn.Write(imei); err != nil {
		b.Fatalf("handshake write: %v", err)
	}
	verdict := make([]byte, 1)
	if _, err := io.ReadFull(conn, verdict); err != nil || verdict[0] != 0x01 {
		b.Fatalf("handshake verdict: %v (0x%02X)", err, verdict[0])
	}
	conn.SetDeadline(time.Time{})
	return conn
}

// BenchmarkServerTelemetry measures the full per-frame path: socket
// read, decode, hub fanout and the acknowledgement write.
func BenchmarkServerTelemetry(b *testing.B) {
	srv, cancel := startInMemoryServer(b)
	defer cancel()
	conn := benchHandshake(b, srv.Addr())
	defer conn.Close()

	frame := mustHex(b, telemetryHex)
	ack := make([]byte, 4)
	b.SetBytes(int64(len(frame)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := conn.Write(frame); err != nil {
			b.Fatalf("write: %v", err)
		}
		if _, err := io.ReadFull(conn, ack); err != nil {
			b.Fatalf("ack: %v", err)
		}
	}
}
