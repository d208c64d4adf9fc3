package population

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

func TestCodec_SaveLoad_RoundTripsStructure(t *testing.T) {
	t.Parallel()

	root := tree.NewRule("module",
		tree.NewRule("func", tree.NewLeaf("name", "foo")),
		tree.NewLeaf("terminator", "return"),
	)

	path := filepath.Join(t.TempDir(), "tree.tree.lz4")

	c := Codec{}
	require.NoError(t, c.Save(path, root))

	loaded, err := c.Load(path)
	require.NoError(t, err)

	assert.Equal(t, root.String(), loaded.String())
	assert.Equal(t, root.Name, loaded.Name)
	assert.Nil(t, loaded.Parent)
	assert.Equal(t, "func", loaded.Children[0].Name)
	assert.Same(t, loaded, loaded.Children[0].Parent)
}

func TestCodec_Save_IsAtomic(t *testing.T) {
	t.Parallel()

	root := tree.NewLeaf("leaf", "x")
	path := filepath.Join(t.TempDir(), "tree.tree.lz4")

	c := Codec{}
	require.NoError(t, c.Save(path, root))

	// No leftover temp file after a successful save.
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}
