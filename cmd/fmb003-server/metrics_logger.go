package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oleelnes/FMB003-server-public/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"frames", snap.Frames,
					"records", snap.Records,
					"tcp_rx", snap.TCPRx,
					"serial_rx", snap.SerialRx,
					"acks", snap.Acks,
					"commands", snap.CmdSent,
					"responses", snap.CmdResp,
					"sessions", snap.Sessions,
					"hub_drops", snap.HubDrops,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
