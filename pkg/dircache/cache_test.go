package dircache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/objstore"
)

func buildSampleTree(t *testing.T, store objstore.Store) core.ObjectID {
	t.Helper()
	ctx := context.Background()

	fileID, err := store.InsertBlob(ctx, []byte("hi"))
	require.NoError(t, err)

	sub, err := store.InsertTree(ctx, map[string]objstore.TreeEntry{
		"c.txt": {Mode: core.RegularFile, ID: fileID},
	})
	require.NoError(t, err)

	root, err := store.InsertTree(ctx, map[string]objstore.TreeEntry{
		"a.txt": {Mode: core.RegularFile, ID: fileID},
		"dir":   {Mode: core.Tree, ID: sub},
	})
	require.NoError(t, err)
	return root
}

func TestForTreeAndLookup(t *testing.T) {
	store := objstore.NewMemStore()
	root := buildSampleTree(t, store)

	cache, err := ForTree(context.Background(), store, root)
	require.NoError(t, err)

	assert.True(t, cache.FileExists("a.txt"))
	assert.True(t, cache.FileExists("dir/c.txt"))
	assert.False(t, cache.FileExists("dir"))
	assert.True(t, cache.IsNonTrivialDirectory("dir"))
	assert.False(t, cache.IsNonTrivialDirectory("a.txt"))

	entry, ok := cache.Lookup("dir/c.txt")
	require.True(t, ok)
	assert.Equal(t, core.RegularFile, entry.Mode)
}

func TestEntriesWithin(t *testing.T) {
	store := objstore.NewMemStore()
	root := buildSampleTree(t, store)
	cache, err := ForTree(context.Background(), store, root)
	require.NoError(t, err)

	all := cache.EntriesWithin("")
	assert.Len(t, all, 2)

	within := cache.EntriesWithin("dir")
	require.Len(t, within, 1)
	assert.Equal(t, "dir/c.txt", within[0].Path)
}

func TestForTreeEmpty(t *testing.T) {
	store := objstore.NewMemStore()
	cache, err := ForTree(context.Background(), store, core.Zero)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestBuilderAndEditor(t *testing.T) {
	store := objstore.NewMemStore()
	root := buildSampleTree(t, store)
	cache, err := ForTree(context.Background(), store, root)
	require.NoError(t, err)

	NewBuilder(cache, map[string]Entry{
		"new.txt": {Mode: core.RegularFile, ID: core.Zero},
	}).Apply()
	assert.True(t, cache.FileExists("new.txt"))

	NewEditor(cache, map[string]struct{}{
		"a.txt": {},
	}).Apply()
	assert.False(t, cache.FileExists("a.txt"))
}
