package depgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMLIRFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestAnalyzeCorpus_MergesAcrossFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMLIRFile(t, dir, "a.mlir", `"func.func"() ({
  %0 = "arith.addi"(%0, %0) : (i32, i32) -> i32
}) : () -> ()`)
	writeMLIRFile(t, dir, "b.mlir", `"func.func"() ({
  %0 = "arith.muli"(%0, %0) : (i32, i32) -> i32
}) : () -> ()`)

	report, err := AnalyzeCorpus(context.Background(), dir, CorpusOptions{})
	require.NoError(t, err)

	assert.Empty(t, report.Failed)
	assert.ElementsMatch(t, []string{"func.func"}, report.Control["arith.addi"])
	assert.ElementsMatch(t, []string{"func.func"}, report.Control["arith.muli"])
	assert.ElementsMatch(t, []string{"func"}, report.DialectControl["arith"])
}

func TestAnalyzeCorpus_RecordsFailuresWithoutAbortingRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMLIRFile(t, dir, "good.mlir", `"func.func"() : () -> ()`)
	writeMLIRFile(t, dir, "bad.mlir", `"no-name-or-operands`)

	report, err := AnalyzeCorpus(context.Background(), dir, CorpusOptions{})
	require.NoError(t, err)

	assert.Contains(t, report.Control, "func.func")
	assert.Len(t, report.Failed, 1)
}

func TestAnalyzeCorpus_ResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeMLIRFile(t, dir, "a.mlir", `"func.func"() : () -> ()`)
	writeMLIRFile(t, dir, "b.mlir", `"arith.addi"() : () -> ()`)

	checkpointDir := t.TempDir()

	_, err := AnalyzeCorpus(context.Background(), dir, CorpusOptions{
		CheckpointEvery: 1,
		CheckpointDir:   checkpointDir,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(checkpointDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	report, err := AnalyzeCorpus(context.Background(), dir, CorpusOptions{
		CheckpointEvery: 1,
		CheckpointDir:   checkpointDir,
	})
	require.NoError(t, err)
	assert.Contains(t, report.Control, "func.func")
	assert.Contains(t, report.Control, "arith.addi")
}
