package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/oleelnes/FMB003-server-public/internal/hub"
	"github.com/oleelnes/FMB003-server-public/internal/logging"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
	"github.com/oleelnes/FMB003-server-public/internal/transport"
)

// session is one device connection past the handshake. All socket
// writes (acks and commands) funnel through tx so the frame loop and
// command callers never interleave partial writes.
type session struct {
	imei string
	conn net.Conn
	tx   *transport.AsyncTx

	pendingMu sync.Mutex
	pending   []chan avl.CommandResponse
	closed    bool
}

func (s *Server) newSession(ctx context.Context, conn net.Conn, imei string, logger *slog.Logger) *session {
	sess := &session{imei: imei, conn: conn}
	sess.tx = transport.NewAsyncTx(ctx, s.txBuf, func(p []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		_, err := conn.Write(p)
		return err
	}, transport.Hooks{
		OnError: func(err error) {
			wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
			metrics.IncError(mapErrToMetric(wrap))
			s.setError(wrap)
			logger.Error("device_tx_error", "error", err)
		},
		OnAfter: func() { s.totalTxWrites.Add(1) },
		OnDrop: func() error {
			metrics.IncError(metrics.ErrTxOverflow)
			return ErrTxOverflow
		},
	})
	return sess
}

// addWaiter registers a command response waiter in arrival order.
func (c *session) addWaiter() (chan avl.CommandResponse, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.closed {
		return nil, ErrSessionClosed
	}
	ch := make(chan avl.CommandResponse, 1)
	c.pending = append(c.pending, ch)
	return ch, nil
}

func (c *session) removeWaiter(ch chan avl.CommandResponse) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for i, w := range c.pending {
		if w == ch {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// resolve hands a response to the oldest waiter, if any. Responses
// with no waiter are unsolicited; they still reach the hub.
func (c *session) resolve(resp avl.CommandResponse) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pending) == 0 {
		return
	}
	ch := c.pending[0]
	c.pending = c.pending[1:]
	ch <- resp
	close(ch)
}

// close fails every outstanding waiter. Idempotent.
func (c *session) close() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = nil
}

// frameLoop reads framed transmissions until the connection dies or
// the stream turns unparseable.
func (s *Server) frameLoop(ctx context.Context, sess *session, logger *slog.Logger) {
	header := make([]byte, 8)
	for {
		_ = sess.conn.SetReadDeadline(time.Now().Add(s.readDeadline))
		n, err := io.ReadFull(sess.conn, header)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			// An idle timeout between frames just refreshes the
			// deadline; a timeout mid-header means a misaligned peer.
			if ne, ok := err.(net.Error); ok && ne.Timeout() && n == 0 {
				continue
			}
			s.readFailed(err, logger)
			return
		}
		preamble := binary.BigEndian.Uint32(header[:4])
		size := binary.BigEndian.Uint32(header[4:8])
		if preamble != 0 || size < 3 || size > codec.MaxDataLen {
			metrics.IncMalformed()
			logger.Warn("bad_frame_header", "preamble", preamble, "size", size)
			return
		}

		frame := make([]byte, 8+int(size)+4)
		copy(frame, header)
		_ = sess.conn.SetReadDeadline(time.Now().Add(s.readDeadline))
		if _, err := io.ReadFull(sess.conn, frame[8:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			s.readFailed(err, logger)
			return
		}
		metrics.IncTCPRx()
		s.totalFrames.Add(1)
		logger.Debug("frame_rx", "len", len(frame), "data", logging.Hex(frame))

		if frame[8] == codec.Codec12Tag {
			if !s.handleResponse(sess, frame, logger) {
				return
			}
		} else if !s.handleTelemetry(sess, frame, logger) {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Server) readFailed(err error, logger *slog.Logger) {
	wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
	metrics.IncError(mapErrToMetric(wrap))
	s.setError(wrap)
	logger.Warn("device_read_error", "error", err)
}

// handleTelemetry decodes a Codec 8E frame, fans it out and
// acknowledges it. Returns false when the session must close.
func (s *Server) handleTelemetry(sess *session, frame []byte, logger *slog.Logger) bool {
	f, err := s.Codec.Decode(frame)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrFrameDecode, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		logger.Warn("frame_decode_failed", "error", err)
		return false
	}
	switch f.Status {
	case avl.NoError:
		if s.Hub != nil {
			fr := f
			s.Hub.Broadcast(hub.Update{IMEI: sess.imei, Source: "tcp", Frame: &fr})
		}
		logger.Debug("frame_decoded", "records", f.NumberOfRecords(), "events", f.NumberOfEvents, "priority", f.HighestPriority.String())
		s.ack(sess, f.NumberOfRecords(), logger)
	case avl.CrcFailed:
		// The device retransmits on a zero ack.
		logger.Warn("crc_failed", "data_length", f.DataLength)
		s.ack(sess, 0, logger)
	default:
		logger.Warn("codec_incompatible", "tag", fmt.Sprintf("0x%02X", frame[8]))
		return false
	}
	return true
}

// handleResponse decodes a Codec 12 frame, settles the oldest command
// waiter and fans the reply out. No acknowledgement for these.
func (s *Server) handleResponse(sess *session, frame []byte, logger *slog.Logger) bool {
	resp, err := s.Cmd.DecodeResponse(frame)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrFrameDecode, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		logger.Warn("response_decode_failed", "error", err)
		return false
	}
	sess.resolve(resp)
	if s.Hub != nil {
		s.Hub.Broadcast(hub.Update{IMEI: sess.imei, Source: "tcp", Response: &resp})
	}
	logger.Info("command_response", "type", resp.Type, "text_len", len(resp.Text))
	return true
}

// ack writes the 4-byte record-count acknowledgement.
func (s *Server) ack(sess *session, records int, logger *slog.Logger) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(records))
	if err := sess.tx.Send(b[:]); err != nil {
		logger.Warn("ack_drop", "error", err)
		return
	}
	metrics.IncAckSent()
}

func (s *Server) lookup(imei string) *session {
	s.sessionsMu.RLock()
	sess := s.sessions[imei]
	s.sessionsMu.RUnlock()
	return sess
}

// Enqueue sends a GPRS command to a device without waiting for the
// reply.
func (s *Server) Enqueue(imei, cmd string) error {
	sess := s.lookup(imei)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrUnknownIMEI, imei)
	}
	if err := sess.tx.Send(s.Cmd.EncodeCommand(cmd)); err != nil {
		return err
	}
	metrics.IncCommandSent()
	s.totalCommands.Add(1)
	return nil
}

// Command sends a GPRS command and waits for the device reply.
// Replies are matched to callers in send order; the wait ends with
// the context.
func (s *Server) Command(ctx context.Context, imei, cmd string) (avl.CommandResponse, error) {
	sess := s.lookup(imei)
	if sess == nil {
		return avl.CommandResponse{}, fmt.Errorf("%w: %s", ErrUnknownIMEI, imei)
	}
	ch, err := sess.addWaiter()
	if err != nil {
		return avl.CommandResponse{}, err
	}
	if err := sess.tx.Send(s.Cmd.EncodeCommand(cmd)); err != nil {
		sess.removeWaiter(ch)
		return avl.CommandResponse{}, err
	}
	metrics.IncCommandSent()
	s.totalCommands.Add(1)
	select {
	case resp, ok := <-ch:
		if !ok {
			return avl.CommandResponse{}, ErrSessionClosed
		}
		return resp, nil
	case <-ctx.Done():
		sess.removeWaiter(ch)
		return avl.CommandResponse{}, fmt.Errorf("%w: %w", ErrContext, ctx.Err())
	}
}

// closeSession tears one session down: unregister, fail waiters, stop
// the transmitter, close the socket.
func (s *Server) closeSession(sess *session, logger *slog.Logger) {
	s.sessionsMu.Lock()
	if cur, ok := s.sessions[sess.imei]; ok && cur == sess {
		delete(s.sessions, sess.imei)
	}
	metrics.SetSessions(len(s.sessions))
	s.sessionsMu.Unlock()
	sess.close()
	_ = sess.conn.Close()
	sess.tx.Close()
	s.totalDisconnected.Add(1)
	logger.Info("device_disconnected")
}
