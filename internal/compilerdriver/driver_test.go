package compilerdriver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthfuzz/synthfuzz-core/internal/compilerdriver"
)

func testConfig() compilerdriver.Config {
	return compilerdriver.Config{
		DialectAssociations: map[string][]string{
			"arith": {"--arith-opt"},
			"scf":   {"--scf-opt", "--scf-bufferize"},
		},
		Seed:          1,
		MaxOptions:    5,
		RetcodeFilter: []int{0},
	}
}

func TestDriver_DetermineOptions_OnlyScansPresentDialects(t *testing.T) {
	t.Parallel()

	d := compilerdriver.New(testConfig())

	opts := d.DetermineOptions(`%0 = "arith.addi"(%a, %b) : (i32, i32) -> i32`)

	assert.ElementsMatch(t, []string{"--arith-opt"}, opts)
}

func TestDriver_DetermineOptions_NoDialectMatchIsEmpty(t *testing.T) {
	t.Parallel()

	d := compilerdriver.New(testConfig())

	opts := d.DetermineOptions(`%0 = "unknown.op"(%a) : (i32) -> i32`)

	assert.Empty(t, opts)
}

func TestDriver_RandomOptions_SampleCountIsDialectCountNotOptionCount(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxOptions = 10 // exceeds both dialect count (2) and option count (3)
	d := compilerdriver.New(cfg)

	opts := d.RandomOptions()

	assert.Len(t, opts, 2)
}

func TestDriver_TestOne_AcceptsNonzeroExitOutsideFilter(t *testing.T) {
	t.Parallel()

	// The script ignores whatever dialect options get injected as args, so
	// the result depends only on its own exit code.
	script := filepath.Join(t.TempDir(), "exit7.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 7\n"), 0o700)) //nolint:gosec // test fixture

	cfg := testConfig()
	cfg.TargetBinary = script
	d := compilerdriver.New(cfg)

	result, err := d.TestOne(context.Background(), "irrelevant text")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 7, result.ExitCode)
}

func TestDriver_TestOne_RejectsZeroExit(t *testing.T) {
	t.Parallel()

	script := filepath.Join(t.TempDir(), "exit0.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o700)) //nolint:gosec // test fixture

	cfg := testConfig()
	cfg.TargetBinary = script
	d := compilerdriver.New(cfg)

	result, err := d.TestOne(context.Background(), "text")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, 0, result.ExitCode)
}

func TestDriver_TestOne_TimeoutReportsSentinelExitCode(t *testing.T) {
	t.Parallel()

	script := filepath.Join(t.TempDir(), "hang.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 60\n"), 0o700)) //nolint:gosec // test fixture

	cfg := testConfig()
	cfg.TargetBinary = script
	cfg.Timeout = 50 * time.Millisecond
	d := compilerdriver.New(cfg)

	result, err := d.TestOne(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, compilerdriver.TimeoutExitCode, result.ExitCode)
	assert.True(t, result.Accepted) // -9999 is not in RetcodeFilter, so it counts as a crash
}
