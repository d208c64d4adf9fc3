package tree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

func TestNode_Replace_DetachesAndSplicesAtFormerIndex(t *testing.T) {
	t.Parallel()

	a := tree.NewLeaf("a", "a")
	b := tree.NewLeaf("b", "b")
	c := tree.NewLeaf("c", "c")
	parent := tree.NewRule("parent", a, b, c)

	replacement := tree.NewLeaf("b2", "bb")

	result := b.Replace(replacement)

	require.Same(t, replacement, result)
	assert.Nil(t, b.Parent, "replaced node must be detached")
	assert.Same(t, parent, replacement.Parent)
	assert.Equal(t, []*tree.Node{a, replacement, c}, parent.Children)
}

func TestNode_Replace_RootHasNoParent(t *testing.T) {
	t.Parallel()

	root := tree.NewLeaf("root", "x")
	other := tree.NewLeaf("other", "y")

	result := root.Replace(other)

	assert.Same(t, other, result)
	assert.Nil(t, other.Parent)
}

func TestNode_InsertChild_ShiftsSubsequentChildren(t *testing.T) {
	t.Parallel()

	a := tree.NewLeaf("a", "a")
	c := tree.NewLeaf("c", "c")
	parent := tree.NewRule("parent", a, c)

	b := tree.NewLeaf("b", "b")
	parent.InsertChild(1, b)

	assert.Equal(t, []*tree.Node{a, b, c}, parent.Children)
	assert.Same(t, parent, b.Parent)
}

func TestNode_Siblings_WalkChildrenDirectly(t *testing.T) {
	t.Parallel()

	a := tree.NewLeaf("a", "a")
	b := tree.NewLeaf("b", "b")
	c := tree.NewLeaf("c", "c")
	tree.NewRule("parent", a, b, c)

	assert.Nil(t, a.LeftSibling())
	assert.Same(t, a, b.LeftSibling())
	assert.Same(t, c, b.RightSibling())
	assert.Nil(t, c.RightSibling())
}

func TestNode_DeepCopy_SharesNoPointers(t *testing.T) {
	t.Parallel()

	leaf := tree.NewLeaf("leaf", "x")
	root := tree.NewRule("root", leaf)

	cp := root.DeepCopy()

	require.NotSame(t, root, cp)
	require.NotSame(t, leaf, cp.Children[0])
	assert.Equal(t, root.String(), cp.String())
	assert.Nil(t, cp.Parent)

	// Mutating the copy must not affect the original.
	cp.Children[0].Text = "mutated"
	assert.Equal(t, "x", leaf.Text)
}

func TestNode_String_ConcatenatesDescendantText(t *testing.T) {
	t.Parallel()

	root := tree.NewRule("root",
		tree.NewLeaf("a", "foo."),
		tree.NewRule("inner", tree.NewLeaf("b", "bar")),
	)

	assert.Equal(t, "foo.bar", root.String())
}

func TestWalk_VisitsInDepthFirstOrder(t *testing.T) {
	t.Parallel()

	a := tree.NewLeaf("a", "a")
	b := tree.NewLeaf("b", "b")
	inner := tree.NewRule("inner", b)
	root := tree.NewRule("root", a, inner)

	var order []string
	tree.Walk(root, func(n *tree.Node) { order = append(order, n.Name) })

	assert.Equal(t, []string{"root", "a", "inner", "b"}, order)
}
