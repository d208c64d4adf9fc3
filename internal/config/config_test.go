package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadMutationConfig_ParsesYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "mutation.yaml", `
fitness_criteria:
  should_substitute:
    - "module.symbol_name"
  no_duplicate:
    - "symbol_name"
parameterization:
  blacklist:
    - "*.constant"
`)

	cfg, err := LoadMutationConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"module.symbol_name"}, cfg.FitnessCriteria.ShouldSubstitute)
	assert.Equal(t, []string{"symbol_name"}, cfg.FitnessCriteria.NoDuplicate)
	assert.Equal(t, []string{"*.constant"}, cfg.Parameterization.Blacklist)
}

func TestLoadMutationConfig_MissingFileIsValidationError(t *testing.T) {
	t.Parallel()

	_, err := LoadMutationConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestDriverConfig_Validate_RequiresExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	binary := writeFile(t, dir, "opt", "#!/bin/sh\n")
	dialects := writeFile(t, dir, "dialects.json", `{"arith": ["--arith-opt"]}`)

	cfg := &DriverConfig{TargetBinary: binary, DialectAssociations: dialects}
	assert.NoError(t, cfg.Validate())

	missing := &DriverConfig{TargetBinary: binary, DialectAssociations: filepath.Join(dir, "nope.json")}
	err := missing.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestDriverConfig_Validate_EmptyTargetBinaryIsError(t *testing.T) {
	t.Parallel()

	cfg := &DriverConfig{DialectAssociations: "x.json"}
	require.ErrorIs(t, cfg.Validate(), ErrFileNotFound)
}

func TestRunOptions_Validate_CooldownOutOfRange(t *testing.T) {
	t.Parallel()

	cases := []float64{0, -1, 1.1}
	for _, c := range cases {
		opts := RunOptions{Cooldown: c, BatchSize: 1}
		require.ErrorIs(t, opts.Validate(), ErrCooldownOutOfRange)
	}
}

func TestRunOptions_Validate_CooldownBoundaryOneIsAllowed(t *testing.T) {
	t.Parallel()

	opts := RunOptions{Cooldown: 1, BatchSize: 1}
	assert.NoError(t, opts.Validate())
}

func TestRunOptions_Validate_BatchSizeRequiresBatchDir(t *testing.T) {
	t.Parallel()

	opts := RunOptions{Cooldown: 1, BatchSize: 5}
	require.ErrorIs(t, opts.Validate(), ErrBatchDirRequired)

	opts.BatchDir = "/tmp/batches"
	assert.NoError(t, opts.Validate())
}

func TestSplitEntry(t *testing.T) {
	t.Parallel()

	parent, child, hasParent := SplitEntry("module.symbol_name")
	assert.Equal(t, "module", parent)
	assert.Equal(t, "symbol_name", child)
	assert.True(t, hasParent)

	parent, child, hasParent = SplitEntry("symbol_name")
	assert.Empty(t, parent)
	assert.Equal(t, "symbol_name", child)
	assert.False(t, hasParent)
}
