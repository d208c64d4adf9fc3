package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeValidateFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestValidateCommand_AcceptsWellFormedDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mutationPath := writeValidateFile(t, dir, "mutation.yaml", `
fitness_criteria:
  should_substitute:
    - "module.symbol_name"
  no_duplicate:
    - "symbol_name"
parameterization:
  blacklist:
    - "*.constant"
`)
	patternsPath := writeValidateFile(t, dir, "patterns.json", `{
  "region": {"match_pattern": ["block"], "child_rules": ["block"]}
}`)

	cmd := NewValidateCommand()

	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{
		"--mutation-config", mutationPath,
		"--insert-patterns", patternsPath,
	})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "valid")
}

func TestValidateCommand_ReportsCooldownFault(t *testing.T) {
	t.Parallel()

	cmd := NewValidateCommand()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--cooldown", "1.5"})

	require.Error(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "FAULT")
}

func TestValidateCommand_ReportsMissingDriverConfigFile(t *testing.T) {
	t.Parallel()

	cmd := NewValidateCommand()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--driver-config", filepath.Join(t.TempDir(), "missing.yaml")})

	require.Error(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "FAULT")
}
