// Package config loads and validates the Mutation configuration and Driver
// configuration documents, plus the insert-pattern catalog and
// dialect-association map files they reference, the way the teacher's own
// pkg/config package loads its server configuration with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors, each wrapped in a *ValidationError by the
// Validate method that detected it.
var (
	ErrCooldownOutOfRange = errors.New("cooldown must be in (0, 1]")
	ErrBatchDirRequired   = errors.New("batch_dir is required when batch_size > 1")
	ErrFileNotFound       = errors.New("referenced file does not exist")
)

// ValidationError wraps a configuration-fault sentinel with the detail of
// which field or document triggered it, per spec.md §7.1's "configuration
// fault" failure kind.
type ValidationError struct {
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Detail, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MutationConfig is the Mutation configuration document (spec.md §6): the
// fitness-criteria and parameterization entry lists consumed by
// internal/fitness.NewPolicy.
type MutationConfig struct {
	FitnessCriteria  FitnessCriteria  `mapstructure:"fitness_criteria"`
	Parameterization Parameterization `mapstructure:"parameterization"`
}

// FitnessCriteria holds the "should_substitute" and "no_duplicate" entry
// lists.
type FitnessCriteria struct {
	ShouldSubstitute []string `mapstructure:"should_substitute"`
	NoDuplicate      []string `mapstructure:"no_duplicate"`
}

// Parameterization holds the parameter blacklist entry list.
type Parameterization struct {
	Blacklist []string `mapstructure:"blacklist"`
}

// LoadMutationConfig reads path (TOML, YAML, or JSON — viper auto-detects
// from the extension) into a MutationConfig.
func LoadMutationConfig(path string) (*MutationConfig, error) {
	var cfg MutationConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DriverConfig is the Driver configuration document (spec.md §6): the
// dialect-association map path, PRNG seed, option sampling bounds, the
// target binary, and the exit-code acceptance filter.
type DriverConfig struct {
	DialectAssociations string   `mapstructure:"dialect_associations"`
	TargetBinary        string   `mapstructure:"target_binary"`
	ErrorFilterPatterns []string `mapstructure:"error_filter_patterns"`
	RetcodeFilter       []int    `mapstructure:"retcode_filter"`
	Seed                int64    `mapstructure:"seed"`
	MaxOptions          int      `mapstructure:"max_options"`
	UseRandomOptions    bool     `mapstructure:"use_random_options"`
}

// LoadDriverConfig reads path into a DriverConfig.
func LoadDriverConfig(path string) (*DriverConfig, error) {
	var cfg DriverConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration-fault conditions spec.md §7.1 assigns
// to the driver document: the target binary and dialect-association map
// must be set and must refer to files that exist.
func (c *DriverConfig) Validate() error {
	if c.TargetBinary == "" {
		return &ValidationError{Detail: "driver config", Err: fmt.Errorf("%w: target_binary", ErrFileNotFound)}
	}

	if _, err := os.Stat(c.TargetBinary); err != nil {
		return &ValidationError{Detail: "driver config target_binary " + c.TargetBinary, Err: ErrFileNotFound}
	}

	if c.DialectAssociations == "" {
		return &ValidationError{Detail: "driver config", Err: fmt.Errorf("%w: dialect_associations", ErrFileNotFound)}
	}

	if _, err := os.Stat(c.DialectAssociations); err != nil {
		return &ValidationError{Detail: "driver config dialect_associations " + c.DialectAssociations, Err: ErrFileNotFound}
	}

	return nil
}

// RunOptions bundles the generator-driver CLI options whose legality
// depends on one another: cooldown must fall in (0,1], and batching above
// one test per file requires a batch directory. Grounded on generate.py's
// argparse validation (the `-c/--cooldown` range restriction and the
// `batch_size > 1` / `batch_dir` pairing enforced before `batched_run`
// starts).
type RunOptions struct {
	BatchDir  string
	Cooldown  float64
	BatchSize int
}

// Validate implements spec.md §7.1's remaining configuration-fault checks:
// `cooldown ∉ (0,1]` and `batch_size > 1` with no `batch_dir`.
func (o RunOptions) Validate() error {
	if o.Cooldown <= 0 || o.Cooldown > 1 {
		return &ValidationError{Detail: fmt.Sprintf("cooldown=%v", o.Cooldown), Err: ErrCooldownOutOfRange}
	}

	if o.BatchSize > 1 && o.BatchDir == "" {
		return &ValidationError{Detail: fmt.Sprintf("batch_size=%d", o.BatchSize), Err: ErrBatchDirRequired}
	}

	return nil
}

func load(path string, out any) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return &ValidationError{Detail: "read " + path, Err: fmt.Errorf("%w: %w", ErrFileNotFound, err)}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	return nil
}

// SplitEntry splits a "parent.child" or bare "child" fitness/
// parameterization entry the same way internal/fitness.BuildMatchMap does,
// exposed here only so config-validation diagnostics can describe an
// entry's shape without importing internal/fitness (which in turn depends
// on internal/tree, a layering this package does not need).
func SplitEntry(entry string) (parent, child string, hasParent bool) {
	p, c, hasDot := strings.Cut(entry, ".")
	if !hasDot {
		return "", p, false
	}

	return p, c, true
}
