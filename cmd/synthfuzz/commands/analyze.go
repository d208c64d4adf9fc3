package commands

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/synthfuzz/synthfuzz-core/internal/depgraph"
	"github.com/synthfuzz/synthfuzz-core/internal/observability"
)

// AnalyzeCommand holds the flags for `synthfuzz analyze`.
type AnalyzeCommand struct {
	corpusDir       string
	checkpointEvery int
	checkpointDir   string
	workers         int

	dialectOnly bool
	jsonOutput  bool

	observabilityInit observabilityInitFunc
}

// NewAnalyzeCommand creates the `analyze` subcommand.
func NewAnalyzeCommand() *cobra.Command {
	return newAnalyzeCommandWithDeps(observability.Init)
}

func newAnalyzeCommandWithDeps(otelInit observabilityInitFunc) *cobra.Command {
	ac := &AnalyzeCommand{observabilityInit: otelInit}

	cmd := &cobra.Command{
		Use:   "analyze <corpus-dir>",
		Short: "Report structural control/data dependencies across a corpus",
		Long:  "Walk every .mlir file in a directory and report the control- and data-dependency edges recovered between operations.",
		Args:  cobra.ExactArgs(1),
		RunE:  ac.run,
	}

	cmd.Flags().IntVar(&ac.checkpointEvery, "checkpoint-every", 0, "Persist a resumable checkpoint every N processed files (0 disables)")
	cmd.Flags().StringVar(&ac.checkpointDir, "checkpoint-dir", "", "Checkpoint directory (required when checkpoint-every > 0)")
	cmd.Flags().IntVar(&ac.workers, "workers", 0, "Files analyzed concurrently (0 = unbounded)")
	cmd.Flags().BoolVar(&ac.dialectOnly, "dialect-only", false, "Render only the dialect-level reduction")
	cmd.Flags().BoolVar(&ac.jsonOutput, "json", false, "Emit the full report as JSON instead of a table")

	return cmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	ac.corpusDir = args[0]

	providers, err := ac.observabilityInit(analyzeObservabilityConfig())
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	report, err := depgraph.AnalyzeCorpus(ctx, ac.corpusDir, depgraph.CorpusOptions{
		CheckpointEvery: ac.checkpointEvery,
		CheckpointDir:   ac.checkpointDir,
		Workers:         ac.workers,
	})
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if ac.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	renderCorpusReport(cmd, report, ac.dialectOnly)

	return nil
}

func analyzeObservabilityConfig() observability.Config {
	cfg := observability.DefaultConfig()
	cfg.Mode = observability.ModeAnalyze

	return cfg
}

func renderCorpusReport(cmd *cobra.Command, report *depgraph.CorpusReport, dialectOnly bool) {
	control, data := report.Control, report.Data
	if dialectOnly {
		control, data = report.DialectControl, report.DialectData
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"operation", "control deps", "data deps"})

	names := make([]string, 0, len(control)+len(data))
	seen := map[string]struct{}{}

	for name := range control {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
			seen[name] = struct{}{}
		}
	}

	for name := range data {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
			seen[name] = struct{}{}
		}
	}

	sort.Strings(names)

	for _, name := range names {
		t.AppendRow(table.Row{name, len(control[name]), len(data[name])})
	}

	t.Render()

	if len(report.Failed) > 0 {
		warn := color.New(color.FgYellow)
		warn.Fprintf(cmd.ErrOrStderr(), "%d file(s) failed to analyze:\n", len(report.Failed))

		failedNames := make([]string, 0, len(report.Failed))
		for name := range report.Failed {
			failedNames = append(failedNames, name)
		}

		sort.Strings(failedNames)

		for _, name := range failedNames {
			warn.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", name, report.Failed[name])
		}
	}
}
