package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port is the read side of a capture device. Trackers are commanded
// over TCP, never through the capture link, so there is no write half.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

const defaultBaud = 115200

// Open opens the capture device. A zero or negative baud falls back
// to the usual debug-header rate.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	if baud <= 0 {
		baud = defaultBaud
	}
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
