package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_ControlAndDataDeps(t *testing.T) {
	t.Parallel()

	text := `"func.func"() ({
^bb0(%arg0: i32):
  %0 = "arith.addi"(%arg0, %arg0) : (i32, i32) -> i32
  %1 = "arith.muli"(%0, %arg0) : (i32, i32) -> i32
  "func.return"(%1) : (i32) -> ()
}) : () -> ()`

	record, err := Analyze(text)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"func.func"}, record.Control["arith.addi"])
	assert.ElementsMatch(t, []string{"func.func"}, record.Control["arith.muli"])
	assert.ElementsMatch(t, []string{"func.func"}, record.Control["func.return"])

	assert.ElementsMatch(t, []string{"func.func"}, record.Data["arith.addi"])
	assert.ElementsMatch(t, []string{"arith.addi", "func.func"}, record.Data["arith.muli"])
	assert.ElementsMatch(t, []string{"arith.muli"}, record.Data["func.return"])
}

// TestAnalyze_ForwardReference covers the case compute_pairs.py calls out
// explicitly: an operand referring to a value bound later in the same
// block (cyclic-looking graphs). The reference is deferred and resolved
// once the enclosing region closes.
func TestAnalyze_ForwardReference(t *testing.T) {
	t.Parallel()

	text := `"test.outer"() ({
  %0 = "test.use"(%1) : (i32) -> i32
  %1 = "test.def"() : () -> i32
}) : () -> ()
"test.after"() : () -> ()`

	record, err := Analyze(text)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"test.def"}, record.Data["test.use"])
}

func TestAnalyze_UnresolvedOperandIsError(t *testing.T) {
	t.Parallel()

	text := `"test.outer"() ({
  %0 = "test.use"(%missing) : (i32) -> i32
}) : () -> ()
"test.after"() : () -> ()`

	_, err := Analyze(text)
	require.ErrorIs(t, err, ErrUnresolvedOperand)
}

func TestAnalyze_BlockLabelWithoutOperationIsError(t *testing.T) {
	t.Parallel()

	_, err := Analyze("^bb0(%arg0: i32):\n")
	require.Error(t, err)
}

func TestAnalyze_BlankAndTextLinesAreIgnored(t *testing.T) {
	t.Parallel()

	text := "\nsome stray comment text\n" + `"test.op"() : () -> ()`

	record, err := Analyze(text)
	require.NoError(t, err)
	assert.Contains(t, record.Control, "test.op")
}

func TestReduceToDialect_DropsSelfEdges(t *testing.T) {
	t.Parallel()

	opDeps := map[string][]string{
		"arith.addi": {"arith.muli", "func.func"},
		"arith.muli": {"arith.addi"},
	}

	reduced := ReduceToDialect(opDeps)

	assert.ElementsMatch(t, []string{"func"}, reduced["arith"])
}

func TestAnalyze_RoundTripThroughDialectReduction(t *testing.T) {
	t.Parallel()

	text := `"func.func"() ({
  %0 = "arith.addi"(%0, %0) : (i32, i32) -> i32
}) : () -> ()`

	record, err := Analyze(text)
	require.NoError(t, err)

	dialectControl := ReduceToDialect(record.Control)
	assert.ElementsMatch(t, []string{"func"}, dialectControl["arith"])
}
