package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/spf13/cobra"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream decoded traffic from a running server",
	Long: `Subscribe to the live websocket of a running fmb003-server and print
every decoded transmission: one line per telemetry record, plus command
replies as they arrive. --json prints the raw JSON documents instead.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print raw JSON updates")
}

// liveURL rewrites the admin endpoint into its websocket form.
func liveURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported URL scheme: %s (use http:// or ws://)", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/live"
	return u.String(), nil
}

// watchUpdate mirrors the JSON shape of a hub update for display.
type watchUpdate struct {
	IMEI   string `json:"imei"`
	Source string `json:"source"`
	Frame  *struct {
		Status  string `json:"status"`
		Records []struct {
			ID          uint16 `json:"id"`
			TimestampMs uint64 `json:"timestamp_ms"`
			Severity    string `json:"severity"`
			Events      []struct {
				ID   uint16 `json:"id"`
				Name string `json:"name"`
			} `json:"events"`
		} `json:"records"`
		HighestPriority string `json:"highest_priority"`
	} `json:"frame"`
	Response *struct {
		Type uint8  `json:"type"`
		Text string `json:"text"`
	} `json:"response"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	target, err := liveURL(serverURL)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(cmd.Context(), target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %v (HTTP %d)", target, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()
	fmt.Fprintf(os.Stderr, "watching %s\n", target)
	for {
		if watchJSON {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return watchCloseErr(err)
			}
			fmt.Println(string(msg))
			continue
		}
		var u watchUpdate
		if err := conn.ReadJSON(&u); err != nil {
			return watchCloseErr(err)
		}
		printUpdate(u)
	}
}

// watchCloseErr folds a clean peer shutdown into a zero exit.
func watchCloseErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

func printUpdate(u watchUpdate) {
	imei := u.IMEI
	if imei == "" {
		imei = "-"
	}
	switch {
	case u.Response != nil:
		fmt.Printf("%-6s imei=%s response type=0x%02X text=%q\n", u.Source, imei, u.Response.Type, u.Response.Text)
	case u.Frame != nil:
		for _, r := range u.Frame.Records {
			ts := avl.Record{Timestamp: r.TimestampMs}.DisplayTime()
			fmt.Printf("%s %-6s imei=%s record=%d prio=%s events=%d\n", ts, u.Source, imei, r.ID, r.Severity, len(r.Events))
		}
		if len(u.Frame.Records) == 0 {
			fmt.Printf("%-6s imei=%s status=%s\n", u.Source, imei, u.Frame.Status)
		}
	}
}
