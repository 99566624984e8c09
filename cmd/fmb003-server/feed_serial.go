package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/oleelnes/FMB003-server-public/internal/hub"
	"github.com/oleelnes/FMB003-server-public/internal/logging"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
	"github.com/oleelnes/FMB003-server-public/internal/serial"
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = serial.Open

// startSerialFeed opens the capture port and launches the RX loop: scan
// the byte stream for framed transmissions, decode each one and push it
// through the hub. The capture link is read only; commands reach
// trackers over TCP.
func startSerialFeed(ctx context.Context, cfg *appConfig, h *hub.Hub, dec *codec.Codec, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return func() {}, fmt.Errorf("open serial: %w", err)
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)
	sc := serial.Scanner{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("serial_rx_end")
		buf := make([]byte, serialReadBufSize)
		acc := bytes.NewBuffer(nil)
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := sp.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				_ = sc.Scan(acc, func(frame []byte) {
					f, derr := dec.Decode(frame)
					if derr != nil {
						metrics.IncError(metrics.ErrDecode)
						l.Warn("serial_decode_error", "error", derr)
						return
					}
					if f.Status != avl.NoError {
						l.Warn("serial_frame_rejected", "status", f.Status.String(), "data", logging.Hex(frame))
						return
					}
					h.Broadcast(hub.Update{Source: "serial", Frame: &f})
				})
				if acc.Len() == 0 && cap(acc.Bytes()) > largeBufferReclaimThreshold {
					acc = bytes.NewBuffer(nil)
				}
				backoff = rxBackoffMin
			}
			if err != nil {
				if ctx.Err() != nil { // shutting down
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					return // device removed or fatal
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue // ignore transient EOF
				}
				metrics.IncError(metrics.ErrSerialRead)
				l.Warn("serial_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
			}
		}
	}()
	return func() { _ = sp.Close() }, nil
}
