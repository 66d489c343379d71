package dircache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/objstore"
)

func TestWriteTreeRoundTrip(t *testing.T) {
	store := objstore.NewMemStore()
	root := buildSampleTree(t, store)
	ctx := context.Background()

	cache, err := ForTree(ctx, store, root)
	require.NoError(t, err)

	writtenID, err := cache.WriteTree(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, root, writtenID, "writing back an unmodified cache must reproduce the same tree id")
}

func TestWriteTreeAfterEdit(t *testing.T) {
	store := objstore.NewMemStore()
	root := buildSampleTree(t, store)
	ctx := context.Background()

	cache, err := ForTree(ctx, store, root)
	require.NoError(t, err)

	newBlob, err := store.InsertBlob(ctx, []byte("new nested file"))
	require.NoError(t, err)
	NewBuilder(cache, map[string]Entry{
		"dir/sub/d.txt": {Mode: core.RegularFile, ID: newBlob},
	}).Apply()

	treeID, err := cache.WriteTree(ctx, store)
	require.NoError(t, err)
	assert.NotEqual(t, root, treeID)

	entry, ok, err := store.WalkTree(ctx, treeID, "dir/sub/d.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newBlob, entry.ID)
}

func TestWriteTreeEmptyCache(t *testing.T) {
	store := objstore.NewMemStore()
	cache := New()
	id, err := cache.WriteTree(context.Background(), store)
	require.NoError(t, err)

	children, err := store.ListTree(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, children, 0)
}
