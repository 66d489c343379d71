package objstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basaltfs/gfs/pkg/core"
)

func TestMemStoreBlobRoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	id, err := s.InsertBlob(ctx, []byte("hello"))
	require.NoError(t, err)

	data, err := s.ReadBlob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	size, err := s.ReadBlobSize(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
}

func TestMemStoreIdenticalContentSameID(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	a, err := s.InsertBlob(ctx, []byte("same"))
	require.NoError(t, err)
	b, err := s.InsertBlob(ctx, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMemStoreTreeWalkAndList(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	fileID, err := s.InsertBlob(ctx, []byte("content"))
	require.NoError(t, err)

	subTree, err := s.InsertTree(ctx, map[string]TreeEntry{
		"b.txt": {Mode: core.RegularFile, ID: fileID},
	})
	require.NoError(t, err)

	rootTree, err := s.InsertTree(ctx, map[string]TreeEntry{
		"a.txt": {Mode: core.RegularFile, ID: fileID},
		"dir":   {Mode: core.Tree, ID: subTree},
	})
	require.NoError(t, err)

	entry, ok, err := s.WalkTree(ctx, rootTree, "dir/b.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fileID, entry.ID)

	children, err := s.ListTree(ctx, rootTree)
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func TestMemStoreBranchHeadLifecycle(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	commit1, err := s.InsertCommit(ctx, Commit{Message: "first"})
	require.NoError(t, err)
	require.NoError(t, s.InitBranchHead(ctx, "refs/heads/main", commit1, "first"))

	id, ok, err := s.ResolveRef(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, commit1, id)

	// Initializing an already-initialized branch head must fail: the
	// CAS expects the zero id.
	err = s.InitBranchHead(ctx, "refs/heads/main", commit1, "double init")
	assert.Error(t, err)

	commit2, err := s.InsertCommit(ctx, Commit{Message: "second", Parents: []core.ObjectID{commit1}})
	require.NoError(t, err)
	require.NoError(t, s.CommitBranchHead(ctx, "refs/heads/main", commit1, commit2, "second"))

	entries, err := s.ReflogEntries(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "commit (initial): first", entries[0].Message)
	assert.Equal(t, "commit: second", entries[1].Message)
	assert.Equal(t, commit2, entries[1].New)
}

func TestMemStoreAmendAndReset(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	commit1, _ := s.InsertCommit(ctx, Commit{Message: "first"})
	require.NoError(t, s.InitBranchHead(ctx, "refs/heads/main", commit1, "first"))

	commit2, _ := s.InsertCommit(ctx, Commit{Message: "amended"})
	require.NoError(t, s.AmendBranchHead(ctx, "refs/heads/main", commit2, "amended"))

	id, _, _ := s.ResolveRef(ctx, "refs/heads/main")
	assert.Equal(t, commit2, id)

	commit3, _ := s.InsertCommit(ctx, Commit{Message: "reset"})
	require.NoError(t, s.ResetBranchHead(ctx, "refs/heads/main", commit3))
	id, _, _ = s.ResolveRef(ctx, "refs/heads/main")
	assert.Equal(t, commit3, id)
}
