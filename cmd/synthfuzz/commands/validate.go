package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cfgpkg "github.com/synthfuzz/synthfuzz-core/internal/config"
)

// ValidateCommand holds the flags for `synthfuzz validate`.
type ValidateCommand struct {
	mutationConfig string
	driverConfig   string
	insertPatterns string
	cooldown       float64
	batchSize      int
	batchDir       string
}

// NewValidateCommand creates the `validate` subcommand.
func NewValidateCommand() *cobra.Command {
	vc := &ValidateCommand{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration documents without running anything",
		Long:  "Load and validate the mutation configuration, driver configuration, and insert-pattern catalog, reporting every configuration fault found.",
		RunE:  vc.run,
	}

	cmd.Flags().StringVar(&vc.mutationConfig, "mutation-config", "", "Mutation configuration document to validate")
	cmd.Flags().StringVar(&vc.driverConfig, "driver-config", "", "Driver configuration document to validate")
	cmd.Flags().StringVar(&vc.insertPatterns, "insert-patterns", "", "Insert-pattern catalog document to validate")
	cmd.Flags().Float64Var(&vc.cooldown, "cooldown", 1, "Cooldown value to range-check")
	cmd.Flags().IntVar(&vc.batchSize, "batch-size", 1, "Batch size to cross-check against --batch-dir")
	cmd.Flags().StringVar(&vc.batchDir, "batch-dir", "", "Batch directory to cross-check against --batch-size")

	return cmd
}

func (vc *ValidateCommand) run(cmd *cobra.Command, _ []string) error {
	var faults []error

	if vc.mutationConfig != "" {
		if _, err := cfgpkg.LoadMutationConfig(vc.mutationConfig); err != nil {
			faults = append(faults, fmt.Errorf("mutation config: %w", err))
		}
	}

	if vc.driverConfig != "" {
		driverCfg, err := cfgpkg.LoadDriverConfig(vc.driverConfig)
		if err != nil {
			faults = append(faults, fmt.Errorf("driver config: %w", err))
		} else if validateErr := driverCfg.Validate(); validateErr != nil {
			faults = append(faults, fmt.Errorf("driver config: %w", validateErr))
		} else if driverCfg.DialectAssociations != "" {
			if validateErr := cfgpkg.ValidateDialectAssociations(driverCfg.DialectAssociations); validateErr != nil {
				faults = append(faults, fmt.Errorf("dialect associations: %w", validateErr))
			}
		}
	}

	if vc.insertPatterns != "" {
		if err := cfgpkg.ValidateInsertPatternCatalog(vc.insertPatterns); err != nil {
			faults = append(faults, fmt.Errorf("insert patterns: %w", err))
		}
	}

	opts := cfgpkg.RunOptions{Cooldown: vc.cooldown, BatchSize: vc.batchSize, BatchDir: vc.batchDir}
	if err := opts.Validate(); err != nil {
		faults = append(faults, fmt.Errorf("run options: %w", err))
	}

	if len(faults) > 0 {
		errColor := color.New(color.FgRed)

		for _, fault := range faults {
			errColor.Fprintf(cmd.ErrOrStderr(), "FAULT: %v\n", fault)
		}

		return fmt.Errorf("validate: %d configuration fault(s) found", len(faults))
	}

	okColor := color.New(color.FgGreen)
	okColor.Fprintln(cmd.OutOrStdout(), "all configuration documents are valid")

	return nil
}
