// Package admin serves the operator surface: Prometheus metrics,
// readiness, a live telemetry websocket and GPRS command dispatch.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/hub"
	"github.com/oleelnes/FMB003-server-public/internal/logging"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
	"github.com/oleelnes/FMB003-server-public/internal/server"
)

// CommandSender is the slice of the device server the admin API needs.
type CommandSender interface {
	Enqueue(imei, cmd string) error
	Command(ctx context.Context, imei, cmd string) (avl.CommandResponse, error)
	Sessions() []string
}

const (
	defaultWatcherBuffer = 64
	defaultWriteTimeout  = 10 * time.Second
	maxCommandWait       = 60 * time.Second
)

// API exposes the admin endpoints over one mux.
type API struct {
	hub  *hub.Hub
	cmds CommandSender

	// WatcherBuffer sizes each websocket client queue. WatcherLimit
	// caps concurrent watchers; zero means unlimited.
	WatcherBuffer int
	WatcherLimit  int
	WriteTimeout  time.Duration

	upgrader websocket.Upgrader
}

func New(h *hub.Hub, cmds CommandSender) *API {
	return &API{
		hub:           h,
		cmds:          cmds,
		WatcherBuffer: defaultWatcherBuffer,
		WriteTimeout:  defaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler builds the admin mux. Split from StartHTTP so tests can use
// httptest directly.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", handleReady)
	mux.HandleFunc("/live", a.handleLive)
	mux.HandleFunc("/command", a.handleCommand)
	mux.HandleFunc("/sessions", a.handleSessions)
	return mux
}

// StartHTTP serves the admin API on the given address.
func StartHTTP(addr string, api *API) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}
	go func() {
		logging.L().Info("admin_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("admin_http_error", "error", err)
		}
	}()
	return srv
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	if metrics.IsReady() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready\n"))
}

// handleLive upgrades to a websocket and streams hub updates as JSON,
// one message per update, until either side hangs up.
func (a *API) handleLive(w http.ResponseWriter, r *http.Request) {
	if a.WatcherLimit > 0 && a.hub.Count() >= a.WatcherLimit {
		metrics.IncHubReject()
		http.Error(w, "too many watchers", http.StatusServiceUnavailable)
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.L().Warn("ws_upgrade_failed", "error", err)
		return
	}
	cl := &hub.Client{Out: make(chan hub.Update, a.WatcherBuffer), Closed: make(chan struct{})}
	a.hub.Add(cl)
	logging.L().Info("watcher_connected", "remote", r.RemoteAddr)
	defer func() {
		a.hub.Remove(cl)
		_ = conn.Close()
		logging.L().Info("watcher_disconnected", "remote", r.RemoteAddr)
	}()

	// Watchers send nothing useful; reading is how we learn the peer
	// went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cl.Close()
				return
			}
		}
	}()

	for {
		select {
		case u := <-cl.Out:
			_ = conn.SetWriteDeadline(time.Now().Add(a.WriteTimeout))
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		case <-cl.Closed:
			return
		}
	}
}

type commandRequest struct {
	IMEI    string `json:"imei"`
	Command string `json:"command"`
	WaitMs  int    `json:"wait_ms"`
}

type commandReply struct {
	IMEI     string               `json:"imei"`
	Status   string               `json:"status"`
	Response *avl.CommandResponse `json:"response,omitempty"`
}

// handleCommand dispatches a GPRS command. With wait_ms > 0 the call
// blocks for the device reply; otherwise the command is queued and
// the request returns immediately.
func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request body")
		return
	}
	if req.IMEI == "" || req.Command == "" {
		writeErr(w, http.StatusBadRequest, "imei and command are required")
		return
	}

	if req.WaitMs <= 0 {
		if err := a.cmds.Enqueue(req.IMEI, req.Command); err != nil {
			writeCommandErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, commandReply{IMEI: req.IMEI, Status: "queued"})
		return
	}

	wait := time.Duration(req.WaitMs) * time.Millisecond
	if wait > maxCommandWait {
		wait = maxCommandWait
	}
	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()
	resp, err := a.cmds.Command(ctx, req.IMEI, req.Command)
	if err != nil {
		writeCommandErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandReply{IMEI: req.IMEI, Status: "ok", Response: &resp})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	imeis := a.cmds.Sessions()
	sort.Strings(imeis)
	writeJSON(w, http.StatusOK, struct {
		Count    int      `json:"count"`
		Sessions []string `json:"sessions"`
	}{Count: len(imeis), Sessions: imeis})
}

func writeCommandErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, server.ErrUnknownIMEI):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, server.ErrContext), errors.Is(err, context.DeadlineExceeded):
		writeErr(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, server.ErrSessionClosed):
		writeErr(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, server.ErrTxOverflow):
		writeErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: msg})
}
