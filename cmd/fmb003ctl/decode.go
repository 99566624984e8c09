package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/oleelnes/FMB003-server-public/internal/params"
	"github.com/spf13/cobra"
)

var (
	decodeParamsFile    string
	decodeInterest      string
	decodeKeepUnmatched bool
	decodeCompact       bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex]",
	Short: "Decode a Codec 8E telemetry transmission",
	Long: `Decode one complete Codec 8E transmission and print it as JSON.

The hex dump comes from the argument or stdin and may contain spaces
and newlines. Event IDs are resolved against the embedded FMB003
parameter dictionary; --params swaps in a custom TOML table and
--interest narrows decoding to the listed parameter IDs.

Exit codes:
  0 - transmission decoded cleanly
  1 - transmission rejected (bad checksum or incompatible codec)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeParamsFile, "params", "", "Parameter dictionary TOML file (default embedded FMB003 table)")
	decodeCmd.Flags().StringVar(&decodeInterest, "interest", "", "Comma-separated parameter IDs to keep")
	decodeCmd.Flags().BoolVar(&decodeKeepUnmatched, "keep-unmatched", false, "Keep events outside --interest instead of dropping them")
	decodeCmd.Flags().BoolVar(&decodeCompact, "compact", false, "Single-line JSON output")
}

// hexArgOrStdin returns the positional argument, or stdin when absent
// or given as "-".
func hexArgOrStdin(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func buildDecodeCodec() (*codec.Codec, error) {
	table := params.Default()
	if decodeParamsFile != "" {
		t, err := params.Load(decodeParamsFile)
		if err != nil {
			return nil, err
		}
		table = t
	}
	ids, err := parseInterest(decodeInterest)
	if err != nil {
		return nil, err
	}
	return &codec.Codec{
		Resolver:      table,
		Interest:      codec.NewInterestSet(ids...),
		KeepUnmatched: decodeKeepUnmatched,
	}, nil
}

func printJSON(v any, compact bool) error {
	var out []byte
	var err error
	if compact {
		out, err = json.Marshal(v)
	} else {
		out, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	in, err := hexArgOrStdin(args)
	if err != nil {
		return err
	}
	cdc, err := buildDecodeCodec()
	if err != nil {
		return err
	}
	f, err := cdc.DecodeHex(in)
	if err != nil {
		return err
	}
	if err := printJSON(f, decodeCompact); err != nil {
		return err
	}
	if f.Status != avl.NoError {
		os.Exit(1)
	}
	return nil
}
