package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/oleelnes/FMB003-server-public/internal/params"
	"github.com/spf13/cobra"
)

var (
	paramsFileFlag string
	paramsJSON     bool
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "List the parameter dictionary",
	Long: `Print the AVL parameter dictionary the decoder resolves event IDs
against: the embedded FMB003 table, or the TOML file given with --file.`,
	Args: cobra.NoArgs,
	RunE: runParams,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.Flags().StringVar(&paramsFileFlag, "file", "", "Parameter dictionary TOML file")
	paramsCmd.Flags().BoolVar(&paramsJSON, "json", false, "JSON output")
}

func runParams(cmd *cobra.Command, args []string) error {
	table := params.Default()
	if paramsFileFlag != "" {
		t, err := params.Load(paramsFileFlag)
		if err != nil {
			return err
		}
		table = t
	}
	all := table.All()
	if paramsJSON {
		return printJSON(all, false)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBYTES\tTYPE\tMULT\tUNIT\tGROUP")
	for _, p := range all {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%g\t%s\t%s\n", p.ID, p.Name, p.Bytes, p.Type, p.Multiplier, p.Unit, p.Group)
	}
	return w.Flush()
}
