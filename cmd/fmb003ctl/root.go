package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Admin endpoint shared by the server-facing commands.
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "fmb003ctl",
	Short: "FMB003 AVL toolbox",
	Long: `fmb003ctl - operator tooling for the FMB003 AVL server.

Offline commands work on hex dumps of tracker traffic: decode Codec 8E
telemetry, check CRC-16 framing, build Codec 12 command frames and
decode their replies.

Online commands talk to a running fmb003-server through its admin
endpoint:
  send      queue or await a command on a connected tracker
  sessions  list connected trackers
  watch     stream decoded traffic from the live websocket`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://127.0.0.1:9100", "Admin endpoint of a running fmb003-server")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// adminURL joins a handler path onto the configured admin endpoint.
func adminURL(path string) string {
	return strings.TrimRight(serverURL, "/") + path
}

// parseInterest turns "239,240,66" into parameter IDs. Empty input
// means no filter.
func parseInterest(s string) ([]uint16, error) {
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
