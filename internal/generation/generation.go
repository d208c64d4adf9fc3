// Package generation declares the contract the mutation kernel depends on
// for producing a fresh subtree from scratch. The grammar-driven generator
// itself — what a Rule is lexically, how alternatives are weighted, how
// cooldown works — is an external collaborator and out of scope for this
// module; this package only names the interface the kernel calls through.
package generation

import (
	"context"

	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// Generator produces fresh subtrees from a start rule, bounded by a maximum
// recursion depth.
type Generator interface {
	// Generate returns the root of a freshly generated subtree for rule,
	// bounded by maxDepth.
	Generate(ctx context.Context, rule string, maxDepth int) (*tree.Node, error)

	// MinDepth returns the minimum depth required to generate rule, and
	// whether that minimum is known. Generators that cannot report a
	// minimum (e.g. because the underlying grammar doesn't track it)
	// return ok=false, and callers fall back to not enforcing the bound
	// up front.
	MinDepth(rule string) (depth int, ok bool)
}

// Serializer renders a tree to its textual test-case form.
type Serializer func(*tree.Node) string

// DefaultSerializer renders a tree using its own String projection. It is
// the fallback used when no domain-specific serializer is supplied,
// mirroring the distilled spec's note that the default serializer is
// simply str().
func DefaultSerializer(n *tree.Node) string {
	return n.String()
}
