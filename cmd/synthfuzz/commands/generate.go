// Package commands implements CLI command handlers for synthfuzz.
package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/synthfuzz/synthfuzz-core/internal/compilerdriver"
	cfgpkg "github.com/synthfuzz/synthfuzz-core/internal/config"
	"github.com/synthfuzz/synthfuzz-core/internal/contextfilter"
	"github.com/synthfuzz/synthfuzz-core/internal/fitness"
	"github.com/synthfuzz/synthfuzz-core/internal/gendriver"
	"github.com/synthfuzz/synthfuzz-core/internal/mutate"
	"github.com/synthfuzz/synthfuzz-core/internal/observability"
	"github.com/synthfuzz/synthfuzz-core/internal/popgen"
	"github.com/synthfuzz/synthfuzz-core/internal/population"
	"github.com/synthfuzz/synthfuzz-core/internal/rng"
)

type observabilityInitFunc func(cfg observability.Config) (observability.Providers, error)

// errGenerateRequiresDriverConfig is returned when --errors-only is set
// without a --driver-config to build a compiler driver from.
var errGenerateRequiresDriverConfig = errors.New("generate: --driver-config is required with --errors-only")

// GenerateCommand holds the flags and collaborators for `synthfuzz generate`.
type GenerateCommand struct {
	mutationConfig string
	driverConfig   string
	insertPatterns string
	populationDir  string

	rule                    string
	maxDepth                int
	maxInsertsPerQuantifier int

	n       int
	workers int

	baseSeed int64
	editSeed int64

	errorsOnly bool
	keepTrees  bool

	outPattern string
	batchSize  int
	batchDir   string
	batchExt   string

	kAncestors int
	lSiblings  int
	rSiblings  int

	metricsAddr string

	observabilityInit observabilityInitFunc
}

// NewGenerateCommand creates the `generate` subcommand.
func NewGenerateCommand() *cobra.Command {
	return newGenerateCommandWithDeps(observability.Init)
}

func newGenerateCommandWithDeps(otelInit observabilityInitFunc) *cobra.Command {
	gc := &GenerateCommand{observabilityInit: otelInit}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Produce new test cases with the mutation kernel",
		Long:  "Produce new MLIR test cases by generating, mutating, recombining, or adaptively splicing fragments out of a seed population.",
		RunE:  gc.run,
	}

	cmd.Flags().StringVar(&gc.mutationConfig, "mutation-config", "", "Mutation configuration document (fitness criteria, parameterization)")
	cmd.Flags().StringVar(&gc.driverConfig, "driver-config", "", "Driver configuration document (required with --errors-only)")
	cmd.Flags().StringVar(&gc.insertPatterns, "insert-patterns", "", "Insert-pattern catalog document")
	cmd.Flags().StringVar(&gc.populationDir, "population-dir", "", "Seed/working population directory")

	cmd.Flags().StringVar(&gc.rule, "rule", "", "Start rule for from-scratch generation")
	cmd.Flags().IntVar(&gc.maxDepth, "max-depth", 10, "Maximum subtree recursion depth")
	cmd.Flags().IntVar(&gc.maxInsertsPerQuantifier, "max-inserts-per-quantifier", 3, "Maximum insertion slots attempted per matched quantifier")

	cmd.Flags().IntVarP(&gc.n, "count", "n", 1, "Number of test cases to produce")
	cmd.Flags().IntVar(&gc.workers, "workers", 1, "Number of parallel workers")

	cmd.Flags().Int64Var(&gc.baseSeed, "base-seed", 0, "Base PRNG seed; test i draws from base-seed+i")
	cmd.Flags().Int64Var(&gc.editSeed, "edit-seed", 0, "Base edit-PRNG seed; test i draws from edit-seed+i")

	cmd.Flags().BoolVar(&gc.errorsOnly, "errors-only", false, "Keep only test cases the compiler driver accepts as a crash")
	cmd.Flags().BoolVar(&gc.keepTrees, "keep-trees", false, "Add retained mutants back into the population")

	cmd.Flags().StringVarP(&gc.outPattern, "out", "o", "test_%d.mlir", "Output path pattern (%d is replaced by the test index)")
	cmd.Flags().IntVar(&gc.batchSize, "batch-size", 1, "Test cases per batch file (1 disables batching)")
	cmd.Flags().StringVar(&gc.batchDir, "batch-dir", "", "Output directory for batch files (required when batch-size > 1)")
	cmd.Flags().StringVar(&gc.batchExt, "batch-ext", ".mlir", "Batch file extension")

	cmd.Flags().IntVar(&gc.kAncestors, "context-ancestors", 2, "Ancestors that must agree on rule name for a recombine/insert candidate")
	cmd.Flags().IntVar(&gc.lSiblings, "context-left-siblings", 1, "Left siblings that must agree on rule name")
	cmd.Flags().IntVar(&gc.rSiblings, "context-right-siblings", 1, "Right siblings that must agree on rule name")

	cmd.Flags().StringVar(&gc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

func (gc *GenerateCommand) run(cmd *cobra.Command, _ []string) error {
	opts := cfgpkg.RunOptions{Cooldown: 1, BatchSize: gc.batchSize, BatchDir: gc.batchDir}
	if err := opts.Validate(); err != nil {
		return err
	}

	providers, err := gc.initObservability()
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

	metrics, err := observability.NewFuzzMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	policy, catalog, err := gc.loadFitness()
	if err != nil {
		return err
	}

	filter := contextfilter.Filter{KAncestors: gc.kAncestors, LSiblings: gc.lSiblings, RSiblings: gc.rSiblings}

	pop := population.New(gc.populationDir, filter)

	var compiler *compilerdriver.Driver
	if gc.errorsOnly {
		compiler, err = gc.loadCompiler()
		if err != nil {
			return err
		}
	}

	driver := &gendriver.Driver{
		NewKernel: func(pair *rng.Pair) *mutate.Kernel {
			return &mutate.Kernel{
				Generator:               popgen.New(gc.populationDir, pair.Main),
				Population:              pop,
				Policy:                  policy,
				Filter:                  filter,
				Catalog:                 catalog,
				RNG:                     pair,
				Rule:                    gc.rule,
				MaxDepth:                gc.maxDepth,
				MaxInsertsPerQuantifier: gc.maxInsertsPerQuantifier,
				EnableGenerate:          true,
				EnableMutate:            true,
				EnableRecombine:         true,
				EnableEdit:              true,
				EnableInsert:            true,
				Logger:                  providers.Logger,
			}
		},
		BaseSeed:   gc.baseSeed,
		EditSeed:   gc.editSeed,
		ErrorsOnly: gc.errorsOnly,
		Compiler:   compiler,
		KeepTrees:  gc.keepTrees,
		OutPattern: gc.outPattern,
		BatchSize:  gc.batchSize,
		BatchDir:   gc.batchDir,
		BatchExt:   gc.batchExt,
		Metrics:    metrics,
	}

	start := time.Now()

	if runErr := driver.Run(ctx, gc.n, gc.workers); runErr != nil {
		return fmt.Errorf("generate: %w", runErr)
	}

	elapsed := time.Since(start)
	successColor := color.New(color.FgGreen)
	successColor.Fprintf(cmd.OutOrStdout(), "produced %s test cases in %s\n", humanize.Comma(int64(gc.n)), elapsed.Round(time.Millisecond))

	return nil
}

func (gc *GenerateCommand) loadFitness() (fitness.Policy, fitness.Catalog, error) {
	var policy fitness.Policy

	if gc.mutationConfig != "" {
		mutCfg, err := cfgpkg.LoadMutationConfig(gc.mutationConfig)
		if err != nil {
			return policy, nil, fmt.Errorf("load mutation config: %w", err)
		}

		policy = fitness.NewPolicy(mutCfg.FitnessCriteria.ShouldSubstitute, mutCfg.FitnessCriteria.NoDuplicate, mutCfg.Parameterization.Blacklist)
	}

	var catalog fitness.Catalog

	if gc.insertPatterns != "" {
		if err := cfgpkg.ValidateInsertPatternCatalog(gc.insertPatterns); err != nil {
			return policy, nil, fmt.Errorf("validate insert patterns: %w", err)
		}

		loaded, err := fitness.LoadCatalog(gc.insertPatterns)
		if err != nil {
			return policy, nil, fmt.Errorf("load insert patterns: %w", err)
		}

		catalog = loaded
	}

	return policy, catalog, nil
}

func (gc *GenerateCommand) loadCompiler() (*compilerdriver.Driver, error) {
	if gc.driverConfig == "" {
		return nil, errGenerateRequiresDriverConfig
	}

	driverCfg, err := cfgpkg.LoadDriverConfig(gc.driverConfig)
	if err != nil {
		return nil, fmt.Errorf("load driver config: %w", err)
	}

	if validateErr := driverCfg.Validate(); validateErr != nil {
		return nil, validateErr
	}

	if validateErr := cfgpkg.ValidateDialectAssociations(driverCfg.DialectAssociations); validateErr != nil {
		return nil, fmt.Errorf("validate dialect associations: %w", validateErr)
	}

	dialects, err := compilerdriver.LoadDialectAssociations(driverCfg.DialectAssociations)
	if err != nil {
		return nil, err
	}

	return compilerdriver.New(compilerdriver.Config{
		DialectAssociations: dialects,
		Seed:                driverCfg.Seed,
		MaxOptions:          driverCfg.MaxOptions,
		UseRandomOptions:    driverCfg.UseRandomOptions,
		TargetBinary:        driverCfg.TargetBinary,
		ErrorFilterPatterns: driverCfg.ErrorFilterPatterns,
		RetcodeFilter:       driverCfg.RetcodeFilter,
	}), nil
}

func (gc *GenerateCommand) initObservability() (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.Mode = observability.ModeGenerate
	cfg.MetricsAddr = gc.metricsAddr

	return gc.observabilityInit(cfg)
}
