package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		listenAddr:      ":20000",
		adminAddr:       "",
		serialDev:       "",
		baud:            115200,
		serialReadTO:    50 * time.Millisecond,
		logFormat:       "text",
		logLevel:        "info",
		hubBuffer:       512,
		hubPolicy:       "drop",
		maxSessions:     0,
		handshakeTO:     3 * time.Second,
		clientReadTO:    60 * time.Second,
		logMetricsEvery: 0,
		mdnsEnable:      false,
		mdnsName:        "",
	}

	// Set env overrides
	os.Setenv("FMB003_SERVER_BAUD", "230400")
	os.Setenv("FMB003_SERVER_MDNS_ENABLE", "true")
	os.Setenv("FMB003_SERVER_SERIAL_READ_TIMEOUT", "100ms")
	os.Setenv("FMB003_SERVER_LOG_METRICS_INTERVAL", "5s")
	os.Setenv("FMB003_SERVER_INTEREST", "239,240")
	t.Cleanup(func() {
		os.Unsetenv("FMB003_SERVER_BAUD")
		os.Unsetenv("FMB003_SERVER_MDNS_ENABLE")
		os.Unsetenv("FMB003_SERVER_SERIAL_READ_TIMEOUT")
		os.Unsetenv("FMB003_SERVER_LOG_METRICS_INTERVAL")
		os.Unsetenv("FMB003_SERVER_INTEREST")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.serialReadTO != 100*time.Millisecond {
		t.Fatalf("expected serialReadTO 100ms got %v", base.serialReadTO)
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery 5s got %v", base.logMetricsEvery)
	}
	if base.interestIDs != "239,240" {
		t.Fatalf("expected interest override, got %q", base.interestIDs)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("FMB003_SERVER_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("FMB003_SERVER_BAUD") })
	// Simulate user passed -baud flag (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{hubBuffer: 512}
	os.Setenv("FMB003_SERVER_HUB_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("FMB003_SERVER_HUB_BUFFER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

func TestApplyEnvOverrides_BadDuration(t *testing.T) {
	base := &appConfig{handshakeTO: 5 * time.Second}
	os.Setenv("FMB003_SERVER_HANDSHAKE_TIMEOUT", "sometime")
	t.Cleanup(func() { os.Unsetenv("FMB003_SERVER_HANDSHAKE_TIMEOUT") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	if base.handshakeTO != 5*time.Second {
		t.Fatalf("expected handshakeTO unchanged, got %v", base.handshakeTO)
	}
}
