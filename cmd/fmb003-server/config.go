package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	listenAddr      string
	adminAddr       string
	logFormat       string
	logLevel        string
	hubBuffer       int
	hubPolicy       string
	logMetricsEvery time.Duration
	maxSessions     int
	maxWatchers     int
	handshakeTO     time.Duration
	clientReadTO    time.Duration
	mdnsEnable      bool
	mdnsName        string
	serialDev       string
	baud            int
	serialReadTO    time.Duration
	paramsFile      string
	interestIDs     string
	keepUnmatched   bool

	interest []uint16 // parsed from interestIDs by validate
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	listen := flag.String("listen", ":5027", "Device TCP listen address")
	adminAddr := flag.String("admin-addr", "", "Admin HTTP listen address (e.g., :9100); empty disables")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	hubBuf := flag.Int("hub-buffer", 512, "Per-watcher hub buffer (updates)")
	hubPolicy := flag.String("hub-policy", "drop", "Backpressure policy: drop|kick")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	maxSessions := flag.Int("max-sessions", 0, "Maximum simultaneous device sessions (0 = unlimited)")
	maxWatchers := flag.Int("max-watchers", 0, "Maximum simultaneous websocket watchers (0 = unlimited)")
	handshakeTO := flag.Duration("handshake-timeout", 5*time.Second, "Device IMEI handshake timeout")
	clientReadTO := flag.Duration("client-read-timeout", 60*time.Second, "Per-connection read deadline")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement (packaged systemd unit enables by default)")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default fmb003-server-<hostname>)")
	serialDev := flag.String("serial", "", "Serial capture device path; empty disables the capture feed")
	baud := flag.Int("baud", 115200, "Serial capture baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	paramsFile := flag.String("params-file", "", "Parameter dictionary TOML override; empty uses the embedded FMB003 table")
	interestIDs := flag.String("interest", "", "Comma-separated parameter IDs to keep (empty keeps all)")
	keepUnmatched := flag.Bool("keep-unmatched", false, "With -interest set, keep non-matching events flagged instead of discarding them")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.listenAddr = *listen
	cfg.adminAddr = *adminAddr
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.hubBuffer = *hubBuf
	cfg.hubPolicy = *hubPolicy
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.maxSessions = *maxSessions
	cfg.maxWatchers = *maxWatchers
	cfg.handshakeTO = *handshakeTO
	cfg.clientReadTO = *clientReadTO
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.paramsFile = *paramsFile
	cfg.interestIDs = *interestIDs
	cfg.keepUnmatched = *keepUnmatched

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners, only checks values.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.hubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.clientReadTO <= 0 {
		return fmt.Errorf("client-read-timeout must be > 0")
	}
	if c.maxSessions < 0 {
		return fmt.Errorf("max-sessions must be >= 0")
	}
	if c.maxWatchers < 0 {
		return fmt.Errorf("max-watchers must be >= 0")
	}
	ids, err := parseInterestIDs(c.interestIDs)
	if err != nil {
		return fmt.Errorf("invalid interest: %w", err)
	}
	c.interest = ids
	return nil
}

// parseInterestIDs turns "239,240,66" into parameter IDs. Empty input
// means no filter.
func parseInterestIDs(s string) ([]uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint16, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parameter id %q: %w", p, err)
		}
		ids = append(ids, uint16(n))
	}
	return ids, nil
}

// applyEnvOverrides maps FMB003_SERVER_* environment variables to config
// fields unless a corresponding flag was explicitly set. Boolean & numeric
// parsing is lax: empty values ignored. Duration accepts Go
// time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["listen"]; !ok {
		if v, ok := get("FMB003_SERVER_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["admin-addr"]; !ok {
		if v, ok := get("FMB003_SERVER_ADMIN"); ok {
			c.adminAddr = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("FMB003_SERVER_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("FMB003_SERVER_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["hub-buffer"]; !ok {
		if v, ok := get("FMB003_SERVER_HUB_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.hubBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_HUB_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["hub-policy"]; !ok {
		if v, ok := get("FMB003_SERVER_HUB_POLICY"); ok && v != "" {
			c.hubPolicy = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("FMB003_SERVER_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["max-sessions"]; !ok {
		if v, ok := get("FMB003_SERVER_MAX_SESSIONS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxSessions = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_MAX_SESSIONS: %w", err)
			}
		}
	}
	if _, ok := set["max-watchers"]; !ok {
		if v, ok := get("FMB003_SERVER_MAX_WATCHERS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxWatchers = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_MAX_WATCHERS: %w", err)
			}
		}
	}
	if _, ok := set["handshake-timeout"]; !ok {
		if v, ok := get("FMB003_SERVER_HANDSHAKE_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.handshakeTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_HANDSHAKE_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["client-read-timeout"]; !ok {
		if v, ok := get("FMB003_SERVER_CLIENT_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.clientReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_CLIENT_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("FMB003_SERVER_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("FMB003_SERVER_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	if _, ok := set["serial"]; !ok {
		if v, ok := get("FMB003_SERVER_SERIAL"); ok {
			c.serialDev = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("FMB003_SERVER_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["serial-read-timeout"]; !ok {
		if v, ok := get("FMB003_SERVER_SERIAL_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.serialReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid FMB003_SERVER_SERIAL_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["params-file"]; !ok {
		if v, ok := get("FMB003_SERVER_PARAMS_FILE"); ok {
			c.paramsFile = v
		}
	}
	if _, ok := set["interest"]; !ok {
		if v, ok := get("FMB003_SERVER_INTEREST"); ok {
			c.interestIDs = v
		}
	}
	if _, ok := set["keep-unmatched"]; !ok {
		if v, ok := get("FMB003_SERVER_KEEP_UNMATCHED"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.keepUnmatched = true
			case "0", "false", "no", "off":
				c.keepUnmatched = false
			}
		}
	}
	return firstErr
}
