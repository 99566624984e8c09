package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var sendWait time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <imei> <command>",
	Short: "Send a command through a running server",
	Long: `Submit a Codec 12 command for a connected tracker via the admin
endpoint of a running fmb003-server.

With --wait 0 the command is queued and the call returns immediately;
otherwise the call blocks until the tracker answers or the wait
expires. The server's JSON reply is printed either way.

Exit codes:
  0 - command queued or answered
  1 - server reported an error (unknown IMEI, timeout, ...)`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendWait, "wait", 10*time.Second, "How long to wait for the tracker's reply (0 queues only)")
}

func runSend(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(map[string]any{
		"imei":    args[0],
		"command": args[1],
		"wait_ms": sendWait.Milliseconds(),
	})
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: sendWait + 10*time.Second}
	resp, err := client.Post(adminURL("/command"), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	if !strings.HasSuffix(string(out), "\n") {
		fmt.Println()
	}
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
	return nil
}
