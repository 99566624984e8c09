// Package server owns the device-facing TCP listener: the IMEI
// handshake, one session per tracker, the frame read loop with
// record-count acknowledgements, and Codec 12 command dispatch.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/oleelnes/FMB003-server-public/internal/hub"
	"github.com/oleelnes/FMB003-server-public/internal/logging"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
	"github.com/oleelnes/FMB003-server-public/internal/transport"
)

// Server owns the TCP listener and coordinates device session lifecycle.
type Server struct {
	mu    sync.RWMutex
	addr  string
	Hub   *hub.Hub
	Codec transport.FrameDecoder // *codec.Codec implements
	Cmd   transport.CommandCodec

	readDeadline     time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	maxSessions      int
	txBuf            int

	readyOnce  sync.Once
	readyCh    chan struct{}
	lastErrMu  sync.Mutex
	lastErr    error
	errCh      chan error
	listener   net.Listener
	sessionsMu sync.RWMutex
	sessions   map[string]*session
	wg         sync.WaitGroup
	logger     *slog.Logger
	nextConnID uint64

	totalAccepted      atomic.Uint64
	totalHandshakeFail atomic.Uint64
	totalRejected      atomic.Uint64
	totalConnected     atomic.Uint64
	totalDisconnected  atomic.Uint64
	totalFrames        atomic.Uint64
	totalCommands      atomic.Uint64
	totalTxWrites      atomic.Uint64
}

const (
	defaultReadDeadline     = 60 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	defaultTxBuf            = 32
)

type ServerOption func(*Server)

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		readDeadline:     defaultReadDeadline,
		writeTimeout:     defaultWriteTimeout,
		handshakeTimeout: defaultHandshakeTimeout,
		txBuf:            defaultTxBuf,
		readyCh:          make(chan struct{}),
		errCh:            make(chan error, 1),
		sessions:         make(map[string]*session),
		logger:           logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	return s
}

func WithListenAddr(a string) ServerOption            { return func(s *Server) { s.addr = a } }
func WithHub(hb *hub.Hub) ServerOption                { return func(s *Server) { s.Hub = hb } }
func WithCodec(c transport.FrameDecoder) ServerOption { return func(s *Server) { s.Codec = c } }
func WithCommandCodec(c transport.CommandCodec) ServerOption {
	return func(s *Server) { s.Cmd = c }
}

func WithReadDeadline(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.readDeadline = d
		}
	}
}

func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func WithHandshakeTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.handshakeTimeout = d
		}
	}
}

func WithMaxSessions(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

func WithTxBuffer(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.txBuf = n
		}
	}
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func (s *Server) Addr() string           { s.mu.RLock(); defer s.mu.RUnlock(); return s.addr }
func (s *Server) setAddr(a string)       { s.mu.Lock(); s.addr = a; s.mu.Unlock() }
func (s *Server) SetListenAddr(a string) { s.setAddr(a) }
func (s *Server) Ready() <-chan struct{} { return s.readyCh }
func (s *Server) Errors() <-chan error   { return s.errCh }

func (s *Server) setError(err error) {
	if err == nil {
		return
	}
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	select {
	case s.errCh <- err:
	default:
	}
}
func (s *Server) LastError() error { s.lastErrMu.Lock(); defer s.lastErrMu.Unlock(); return s.lastErr }

// Sessions returns the IMEIs with an active session, sorted order not
// guaranteed.
func (s *Server) Sessions() []string {
	s.sessionsMu.RLock()
	out := make([]string, 0, len(s.sessions))
	for imei := range s.sessions {
		out = append(out, imei)
	}
	s.sessionsMu.RUnlock()
	return out
}

// SessionCount returns the number of devices past the handshake.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	n := len(s.sessions)
	s.sessionsMu.RUnlock()
	return n
}

// Serve accepts device connections and spawns a session goroutine per
// connection.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	addr := s.addr
	if addr == "" {
		addr = ":0"
	}
	s.mu.Unlock()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.setAddr(ln.Addr().String())
	s.listener = ln
	if s.readyCh != nil {
		s.readyOnce.Do(func() { close(s.readyCh) })
	}
	s.logger.Info("tcp_listen", "addr", s.Addr())
	s.logger.Info("ready")
	go func() { <-ctx.Done(); _ = ln.Close() }()
	for {
		if err := s.acceptOnce(ctx, ln); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// acceptOnce accepts a single connection and hands it to a session
// goroutine. The handshake runs there, not here: trackers on cellular
// links are slow to identify and must not stall the accept loop.
// Returns nil on success; a wrapped error on fatal listener errors.
func (s *Server) acceptOnce(ctx context.Context, ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		if _, ok := err.(net.Error); ok { // transient
			time.Sleep(200 * time.Millisecond)
			return nil
		}
		wrap := fmt.Errorf("%w: %v", ErrAccept, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.totalAccepted.Add(1)
	connID := atomic.AddUint64(&s.nextConnID, 1)
	connLogger := s.logger.With("conn_id", connID, "remote", conn.RemoteAddr().String())
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetKeepAlivePeriod(30 * time.Second)
	}
	s.wg.Add(1)
	go s.runSession(ctx, conn, connLogger)
	return nil
}

// runSession drives one device connection from handshake to
// disconnect.
func (s *Server) runSession(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	defer s.wg.Done()

	var sess *session
	admit := func(imei string) bool {
		s.sessionsMu.Lock()
		defer s.sessionsMu.Unlock()
		if _, dup := s.sessions[imei]; dup {
			logger.Warn("session_reject_duplicate", "imei", imei)
			s.totalRejected.Add(1)
			return false
		}
		if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
			logger.Warn("session_reject_max", "max_sessions", s.maxSessions)
			s.totalRejected.Add(1)
			return false
		}
		sess = s.newSession(ctx, conn, imei, logger)
		s.sessions[imei] = sess
		metrics.SetSessions(len(s.sessions))
		return true
	}

	imei, err := codec.Handshake(ctx, conn, s.handshakeTimeout, admit)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrHandshake, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		s.totalHandshakeFail.Add(1)
		logger.Warn("handshake_failed", "error", wrap)
		if sess != nil {
			// Admitted but the verdict write or the context failed.
			s.closeSession(sess, logger)
			return
		}
		_ = conn.Close()
		return
	}
	s.totalConnected.Add(1)
	logger = logger.With("imei", imei)
	logger.Info("device_connected")
	s.frameLoop(ctx, sess, logger)
	s.closeSession(sess, logger)
}

// Shutdown gracefully closes all resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.sessionsMu.RLock()
	conns := make([]net.Conn, 0, len(s.sessions))
	for _, sess := range s.sessions {
		conns = append(conns, sess.conn)
	}
	s.sessionsMu.RUnlock()
	for _, c := range conns {
		_ = c.Close()
	}
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: shutdown timeout: %v", ErrContext, ctx.Err())
	case <-done:
		s.logger.Info("shutdown_summary", "accepted", s.totalAccepted.Load(), "handshake_fail", s.totalHandshakeFail.Load(), "rejected", s.totalRejected.Load(), "connected", s.totalConnected.Load(), "disconnected", s.totalDisconnected.Load(), "frames", s.totalFrames.Load(), "commands", s.totalCommands.Load(), "tx_writes", s.totalTxWrites.Load())
		return nil
	}
}
