package main

import (
	"fmt"

	"github.com/oleelnes/FMB003-server-public/internal/codec"
	"github.com/spf13/cobra"
)

var commandCmd = &cobra.Command{
	Use:   "command <text>",
	Short: "Build a Codec 12 command frame",
	Long: `Wrap a command string in a Codec 12 frame and print the full
transmission as hex, ready to push at a tracker over any link.`,
	Args: cobra.ExactArgs(1),
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	var cdc codec.Codec
	fmt.Println(cdc.EncodeCommandHex(args[0]))
	return nil
}
