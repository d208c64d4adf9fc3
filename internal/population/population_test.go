package population_test

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthfuzz/synthfuzz-core/internal/contextfilter"
	"github.com/synthfuzz/synthfuzz-core/internal/population"
	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

func sampleTree(seed string) *tree.Node {
	return tree.NewRule("module",
		tree.NewRule("func",
			tree.NewLeaf("name", seed),
		),
	)
}

func TestPopulation_AddAndLoad_RoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := population.New(dir, contextfilter.Filter{})

	root := sampleTree("foo")
	require.NoError(t, p.Add(root, filepath.Join(dir, "test_0")))

	n, err := p.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPopulation_CanMutateAndRecombine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := population.New(dir, contextfilter.Filter{})

	can, err := p.CanMutate()
	require.NoError(t, err)
	assert.False(t, can)

	require.NoError(t, p.Add(sampleTree("a"), filepath.Join(dir, "a")))

	can, err = p.CanMutate()
	require.NoError(t, err)
	assert.True(t, can)

	can, err = p.CanRecombine()
	require.NoError(t, err)
	assert.False(t, can)

	require.NoError(t, p.Add(sampleTree("b"), filepath.Join(dir, "b")))

	can, err = p.CanRecombine()
	require.NoError(t, err)
	assert.True(t, can)
}

func TestPopulation_SelectToRecombine_FindsSharedRuleName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := population.New(dir, contextfilter.Filter{})

	require.NoError(t, p.Add(sampleTree("a"), filepath.Join(dir, "a")))
	require.NoError(t, p.Add(sampleTree("b"), filepath.Join(dir, "b")))

	r := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic test seed

	recipient, donor, ok, err := p.SelectToRecombine(r, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, recipient.Name, donor.Name)
}

func TestPopulation_SelectToInsert_ReturnsTwoWholeTrees(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := population.New(dir, contextfilter.Filter{})

	require.NoError(t, p.Add(sampleTree("a"), filepath.Join(dir, "a")))
	require.NoError(t, p.Add(sampleTree("b"), filepath.Join(dir, "b")))

	r := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic test seed

	recipientTree, donorTree, ok, err := p.SelectToInsert(r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "module", recipientTree.Root.Name)
	assert.Equal(t, "module", donorTree.Root.Name)
}

func TestPopulation_MissingDirectoryIsEmptyNotError(t *testing.T) {
	t.Parallel()

	p := population.New(filepath.Join(t.TempDir(), "does-not-exist"), contextfilter.Filter{})

	n, err := p.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
