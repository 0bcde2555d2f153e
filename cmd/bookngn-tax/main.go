// Command bookngn-tax runs the tax engine from the command line, without any
// stored ledger.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"bookngn/internal/cli"
	"bookngn/internal/tax"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookngn-tax",
		Short:         "Nigerian income tax estimator",
		Long:          "Estimate annual income tax from a financial profile using the NTA 2025 schedules or a custom rules file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("rules", "", "tax rules YAML file (default: embedded NTA 2025 rules)")

	root.AddCommand(newEstimateCmd(), newBandsCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookngn-tax %s (commit %s, built %s)\n", version, commit, date)
			if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "module %s %s\n", bi.Main.Path, bi.Main.Version)
			}
		},
	}
}

// engineFor builds an engine over the --rules file, or the embedded rules.
func engineFor(cmd *cobra.Command) (*tax.Engine, error) {
	path, _ := cmd.Flags().GetString("rules")
	rules, err := cli.LoadTaxRules(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return tax.NewEngine(rules), nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
