package main

import (
	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/spf13/cobra"
)

var responseCompact bool

var responseCmd = &cobra.Command{
	Use:   "response [hex]",
	Short: "Decode a Codec 12 command reply",
	Long: `Decode the Codec 12 reply a tracker sends after executing a command
and print it as JSON. The hex dump comes from the argument or stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResponse,
}

func init() {
	rootCmd.AddCommand(responseCmd)
	responseCmd.Flags().BoolVar(&responseCompact, "compact", false, "Single-line JSON output")
}

func runResponse(cmd *cobra.Command, args []string) error {
	in, err := hexArgOrStdin(args)
	if err != nil {
		return err
	}
	var cdc codec.Codec
	r, err := cdc.DecodeResponseHex(in)
	if err != nil {
		return err
	}
	return printJSON(r, responseCompact)
}
