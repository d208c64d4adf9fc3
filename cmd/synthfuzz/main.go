// Command synthfuzz drives grammar-guided mutation fuzzing of MLIR test
// cases: generate produces new test cases with the mutation kernel, analyze
// reports structural dependencies across a corpus, and validate checks a
// configuration document without running anything.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/synthfuzz/synthfuzz-core/cmd/synthfuzz/commands"
	"github.com/synthfuzz/synthfuzz-core/pkg/version"
)

func main() {
	var (
		verbose bool
		noColor bool
	)

	rootCmd := &cobra.Command{
		Use:   "synthfuzz",
		Short: "Grammar-guided mutation fuzzing for MLIR",
		Long: `synthfuzz drives grammar-guided mutation fuzzing of MLIR test cases.

It produces new test cases by generating, mutating, recombining, or
adaptively splicing fragments out of a seed population, feeds them through
a compiler driver, and reports structural control/data dependencies across
a corpus.`,
		PersistentPreRun: func(*cobra.Command, []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "accepted but not read: no subcommand changes its log level or output for it")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
