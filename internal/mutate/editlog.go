package mutate

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// DiffSummary renders a human-readable diff between a donor fragment's
// original serialized form and its form after Edit's parameter
// substitutions, for edit-log diagnostics: which values actually changed
// under the adaptation, not just that substitution ran.
func DiffSummary(original, adapted *tree.Node) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(original.String(), adapted.String(), false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	return dmp.DiffPrettyText(diffs)
}
