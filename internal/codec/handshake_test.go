package codec

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

type handshakeResult struct {
	imei string
	err  error
}

func runHandshake(c net.Conn, accept func(string) bool) chan handshakeResult {
	ch := make(chan handshakeResult, 1)
	go func() {
		imei, err := Handshake(context.Background(), c, 2*time.Second, accept)
		ch <- handshakeResult{imei, err}
	}()
	return ch
}

// deviceHello plays the device side: announce the identifier, read
// the verdict byte.
func deviceHello(t *testing.T, c net.Conn, imei string) byte {
	t.Helper()
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(imei)))
	if _, err := c.Write(lb[:]); err != nil {
		t.Fatalf("write length: %v", err)
	}
	if _, err := io.WriteString(c, imei); err != nil {
		t.Fatalf("write imei: %v", err)
	}
	var verdict [1]byte
	if _, err := io.ReadFull(c, verdict[:]); err != nil {
		t.Fatalf("read verdict: %v", err)
	}
	return verdict[0]
}

func TestHandshakeAccept(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	done := runHandshake(srv, nil)
	if v := deviceHello(t, cli, "356307042441013"); v != 0x01 {
		t.Fatalf("verdict = %#x, want accept", v)
	}
	r := <-done
	if r.err != nil {
		t.Fatalf("handshake: %v", r.err)
	}
	if r.imei != "356307042441013" {
		t.Fatalf("imei = %q", r.imei)
	}
}

func TestHandshakeRejectedByCallback(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	done := runHandshake(srv, func(string) bool { return false })
	if v := deviceHello(t, cli, "356307042441013"); v != 0x00 {
		t.Fatalf("verdict = %#x, want reject", v)
	}
	r := <-done
	if !errors.Is(r.err, ErrIMEIRejected) {
		t.Fatalf("err = %v, want ErrIMEIRejected", r.err)
	}
}

func TestHandshakeNotNumeric(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	done := runHandshake(srv, nil)
	if v := deviceHello(t, cli, "35630704244101A"); v != 0x00 {
		t.Fatalf("verdict = %#x, want reject", v)
	}
	r := <-done
	if !errors.Is(r.err, ErrBadIMEI) {
		t.Fatalf("err = %v, want ErrBadIMEI", r.err)
	}
}

func TestHandshakeBadLength(t *testing.T) {
	cases := []struct {
		name string
		n    uint16
	}{
		{"zero", 0},
		{"oversize", maxIMEILen + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, cli := net.Pipe()
			defer srv.Close()
			defer cli.Close()

			done := runHandshake(srv, nil)
			var lb [2]byte
			binary.BigEndian.PutUint16(lb[:], tc.n)
			if _, err := cli.Write(lb[:]); err != nil {
				t.Fatalf("write length: %v", err)
			}
			var verdict [1]byte
			if _, err := io.ReadFull(cli, verdict[:]); err != nil {
				t.Fatalf("read verdict: %v", err)
			}
			if verdict[0] != 0x00 {
				t.Fatalf("verdict = %#x, want reject", verdict[0])
			}
			r := <-done
			if !errors.Is(r.err, ErrIMEILength) {
				t.Fatalf("err = %v, want ErrIMEILength", r.err)
			}
		})
	}
}

func TestHandshakeTimeout(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	_, err := Handshake(context.Background(), srv, 50*time.Millisecond, nil)
	if err == nil {
		t.Fatal("expected timeout with a silent peer")
	}
}

func TestHandshakeContextCancel(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Handshake(ctx, srv, 5*time.Second, nil)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not observe cancellation")
	}
}
