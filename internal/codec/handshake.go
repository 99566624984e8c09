package codec

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	imeiAccept = 0x01
	imeiReject = 0x00
	// maxIMEILen bounds the declared identifier length. Real devices
	// send 15 digits; the cap leaves room for test rigs without
	// letting a bogus length drive a large read.
	maxIMEILen = 32
)

// ErrIMEILength is returned when the declared identifier length is
// zero or above the cap.
var ErrIMEILength = errors.New("imei: bad length")

// ErrBadIMEI is returned when the identifier holds non-digit bytes.
var ErrBadIMEI = errors.New("imei: not numeric")

// ErrIMEIRejected is returned when the accept callback refuses the
// identifier.
var ErrIMEIRejected = errors.New("imei: rejected")

// Handshake runs the device identification exchange: a 2-byte length,
// the ASCII IMEI, then a one-byte accept or reject from our side. The
// accept callback decides admission; a nil callback admits everyone.
// On success the validated IMEI is returned.
func Handshake(ctx context.Context, c net.Conn, timeout time.Duration, accept func(imei string) bool) (string, error) {
	if deadlineErr := c.SetDeadline(time.Now().Add(timeout)); deadlineErr != nil {
		return "", fmt.Errorf("set deadline: %w", deadlineErr)
	}
	defer c.SetDeadline(time.Time{})

	type result struct {
		imei string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		imei, err := exchangeIMEI(c, accept)
		resCh <- result{imei, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return "", fmt.Errorf("handshake: %w", r.err)
		}
		return r.imei, nil
	}
}

func exchangeIMEI(c net.Conn, accept func(string) bool) (string, error) {
	var lb [2]byte
	if _, err := io.ReadFull(c, lb[:]); err != nil {
		return "", fmt.Errorf("read length: %w", err)
	}
	n := int(binary.BigEndian.Uint16(lb[:]))
	if n == 0 || n > maxIMEILen {
		reject(c)
		return "", fmt.Errorf("%w (%d)", ErrIMEILength, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		return "", fmt.Errorf("read imei: %w", err)
	}
	imei := string(buf)
	if !numeric(imei) {
		reject(c)
		return "", ErrBadIMEI
	}
	if accept != nil && !accept(imei) {
		reject(c)
		return "", fmt.Errorf("%w (%s)", ErrIMEIRejected, imei)
	}
	if _, err := c.Write([]byte{imeiAccept}); err != nil {
		return "", fmt.Errorf("write accept: %w", err)
	}
	return imei, nil
}

// reject tells the device to drop the session; the write is best
// effort since the socket is about to close anyway.
func reject(c net.Conn) { _, _ = c.Write([]byte{imeiReject}) }

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
