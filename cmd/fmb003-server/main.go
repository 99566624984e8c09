package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/oleelnes/FMB003-server-public/internal/admin"
	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/oleelnes/FMB003-server-public/internal/metrics"
	"github.com/oleelnes/FMB003-server-public/internal/params"
	"github.com/oleelnes/FMB003-server-public/internal/server"
)

// Helper implementations moved to dedicated files: version.go, config.go, logger.go, hub_init.go, metrics_logger.go, feed_serial.go.

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("fmb003-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		return
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	h := initHub(cfg, l)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	table := params.Default()
	if cfg.paramsFile != "" {
		t, err := params.Load(cfg.paramsFile)
		if err != nil {
			l.Error("params_load_error", "file", cfg.paramsFile, "error", err)
			return
		}
		table = t
	}
	l.Info("params_table", "parameters", table.Len())
	cdc := &codec.Codec{
		Resolver:      table,
		Interest:      codec.NewInterestSet(cfg.interest...),
		KeepUnmatched: cfg.keepUnmatched,
	}

	cleanup := func() {}
	if cfg.serialDev != "" {
		var ferr error
		cleanup, ferr = startSerialFeed(ctx, cfg, h, cdc, l, &wg)
		if ferr != nil {
			l.Error("serial_feed_error", "error", ferr)
			return
		}
	}

	srv := server.NewServer(
		server.WithHub(h),
		server.WithCodec(cdc),
		server.WithCommandCodec(cdc),
		server.WithLogger(l),
		server.WithMaxSessions(cfg.maxSessions),
		server.WithHandshakeTimeout(cfg.handshakeTO),
		server.WithReadDeadline(cfg.clientReadTO),
	)
	srv.SetListenAddr(cfg.listenAddr)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	// Start mDNS advertisement once listener is ready.
	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		// Extract port from bound address (host:port or :port)
		addr := srv.Addr()
		var portNum int
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		if portNum == 0 { // fallback attempt if format unexpected
			lastColon := strings.LastIndex(addr, ":")
			if lastColon >= 0 {
				if pn, perr := strconv.Atoi(addr[lastColon+1:]); perr == nil {
					portNum = pn
				}
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	// Ready when the listener is bound and context not cancelled.
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.adminAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		api := admin.New(h, srv)
		api.WatcherBuffer = cfg.hubBuffer
		api.WatcherLimit = cfg.maxWatchers
		srvHTTP := admin.StartHTTP(cfg.adminAddr, api)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shCtx); err != nil {
		l.Warn("shutdown_error", "error", err)
	}
	shCancel()
	cleanup()
	wg.Wait()
}
