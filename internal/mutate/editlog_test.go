package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

func TestDiffSummary_HighlightsChangedText(t *testing.T) {
	t.Parallel()

	original := tree.NewLeaf("ident", "old_name")
	adapted := tree.NewLeaf("ident", "new_name")

	summary := DiffSummary(original, adapted)

	assert.Contains(t, summary, "old_name")
	assert.Contains(t, summary, "new_name")
}

func TestDiffSummary_NoChangeRendersPlainText(t *testing.T) {
	t.Parallel()

	same := tree.NewLeaf("ident", "same_name")

	summary := DiffSummary(same, same)

	assert.Equal(t, "same_name", summary)
}
