package gfs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/objstore"
)

func newTestFilesystem(t *testing.T) (*Filesystem, objstore.Store) {
	t.Helper()
	store := objstore.NewMemStore()
	fsys, err := New(context.Background(), store, "test", "refs/heads/main")
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsys.Close() })
	return fsys, store
}

func TestWriteReadFile(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "a.txt", []byte("hello")))

	isFile, err := fsys.IsRegularFile(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, isFile)

	data, err := fsys.ReadFile(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	size, err := fsys.GetFileSize(ctx, "a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
}

func TestNestedDirectoryBecomesVisible(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "dir/sub/file.txt", []byte("x")))

	isDir, err := fsys.IsDirectory(ctx, "dir")
	require.NoError(t, err)
	assert.True(t, isDir)

	isDir, err = fsys.IsDirectory(ctx, "dir/sub")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestDeleteFileShrinksAncestorDirectories(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "dir/only.txt", []byte("x")))
	require.NoError(t, fsys.Delete(ctx, "dir/only.txt"))

	isDir, err := fsys.IsDirectory(ctx, "dir")
	require.NoError(t, err)
	assert.False(t, isDir, "a directory emptied by deleting its last file must stop reporting as a directory")

	isFile, err := fsys.IsRegularFile(ctx, "dir/only.txt")
	require.NoError(t, err)
	assert.False(t, isFile)
}

func TestDeleteNonEmptyDirectoryFails(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "dir/a.txt", []byte("x")))

	err := fsys.Delete(ctx, "dir")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDirectoryNotEmpty)
}

func TestDeleteMissingFileFails(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	err := fsys.Delete(context.Background(), "nope.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoSuchFile)
}

func TestCopyFile(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "src.txt", []byte("payload")))
	require.NoError(t, fsys.Copy(ctx, "src.txt", "dst.txt", false))

	data, err := fsys.ReadFile(ctx, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// original still present
	_, err = fsys.ReadFile(ctx, "src.txt")
	require.NoError(t, err)
}

func TestCopyRefusesExistingDestinationByDefault(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "src.txt", []byte("a")))
	require.NoError(t, fsys.WriteFile(ctx, "dst.txt", []byte("b")))

	err := fsys.Copy(ctx, "src.txt", "dst.txt", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFileExists)

	require.NoError(t, fsys.Copy(ctx, "src.txt", "dst.txt", true))
	data, err := fsys.ReadFile(ctx, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
}

func TestMoveFile(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "src.txt", []byte("payload")))
	require.NoError(t, fsys.Move(ctx, "src.txt", "dst/dst.txt", false))

	_, err := fsys.ReadFile(ctx, "src.txt")
	assert.ErrorIs(t, err, core.ErrNoSuchFile)

	data, err := fsys.ReadFile(ctx, "dst/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestDirectoryStreamSnapshotsAtCreation(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "dir/a.txt", []byte("a")))
	require.NoError(t, fsys.WriteFile(ctx, "dir/b.txt", []byte("b")))

	stream, err := fsys.NewDirectoryStream(ctx, "dir", nil)
	require.NoError(t, err)

	require.ErrorIs(t, fsys.WriteFile(ctx, "dir/c.txt", []byte("c")), core.ErrIllegalState)

	var names []string
	for {
		e, ok := stream.Next()
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	require.NoError(t, stream.Close())
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
}

func TestOpenDirectoryStreamBlocksMutationUnderneath(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "dir/a.txt", []byte("a")))
	stream, err := fsys.NewDirectoryStream(ctx, "dir", nil)
	require.NoError(t, err)

	err = fsys.Delete(ctx, "dir/a.txt")
	assert.ErrorIs(t, err, core.ErrIllegalState)

	require.NoError(t, stream.Close())
	require.NoError(t, fsys.Delete(ctx, "dir/a.txt"))
}

func TestWriteAndUpdateCommit(t *testing.T) {
	fsys, store := newTestFilesystem(t)
	ctx := context.Background()

	require.NoError(t, fsys.WriteFile(ctx, "a.txt", []byte("v1")))
	identity := objstore.Identity{Name: "tester", Email: "t@example.com", When: time.Now()}
	commitID, committed, err := fsys.WriteAndUpdateCommit(ctx, identity, identity, "first", false)
	require.NoError(t, err)
	require.True(t, committed)
	assert.False(t, commitID.IsZero())

	head, ok, err := store.ResolveRef(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, commitID, head)

	require.NoError(t, fsys.WriteFile(ctx, "b.txt", []byte("v2")))
	second, committed, err := fsys.WriteAndUpdateCommit(ctx, identity, identity, "second", false)
	require.NoError(t, err)
	require.True(t, committed)

	commit, found, err := store.ReadCommit(ctx, second)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, commit.Parents, 1)
	assert.Equal(t, commitID, commit.Parents[0])
}

func TestWriteAndUpdateCommitNoOpReturnsFalse(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()
	identity := objstore.Identity{Name: "tester", Email: "t@example.com", When: time.Now()}

	require.NoError(t, fsys.WriteFile(ctx, "a.txt", []byte("v1")))
	_, committed, err := fsys.WriteAndUpdateCommit(ctx, identity, identity, "first", false)
	require.NoError(t, err)
	require.True(t, committed)

	_, committed, err = fsys.WriteAndUpdateCommit(ctx, identity, identity, "second", false)
	require.NoError(t, err)
	assert.False(t, committed, "a second commit with no intervening edits must return none")

	treeID, wrote, err := fsys.WriteAndUpdateTree(ctx)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.True(t, treeID.IsZero())
}

func TestDeleteRefusesAttachedChannel(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	ctx := context.Background()

	ch, err := fsys.NewByteChannel(ctx, "x.txt", NewOpenOptions(OpenWrite, OpenCreate))
	require.NoError(t, err)
	_, err = ch.Write([]byte("data"))
	require.NoError(t, err)

	err = fsys.Delete(ctx, "x.txt")
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	require.NoError(t, ch.Close())
	require.NoError(t, fsys.Delete(ctx, "x.txt"))
}

func TestReopenAttachedFilesystemSeesCommittedState(t *testing.T) {
	store := objstore.NewMemStore()
	ctx := context.Background()

	fsys, err := New(ctx, store, "test", "refs/heads/main")
	require.NoError(t, err)
	require.NoError(t, fsys.WriteFile(ctx, "a.txt", []byte("hi")))
	identity := objstore.Identity{Name: "t", Email: "t@t", When: time.Now()}
	_, _, err = fsys.WriteAndUpdateCommit(ctx, identity, identity, "first", false)
	require.NoError(t, err)
	require.NoError(t, fsys.Close())

	reopened, err := New(ctx, store, "test", "refs/heads/main")
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.ReadFile(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestOperationsFailOnClosedFilesystem(t *testing.T) {
	fsys, _ := newTestFilesystem(t)
	require.NoError(t, fsys.Close())

	_, err := fsys.IsRegularFile(context.Background(), "a.txt")
	assert.ErrorIs(t, err, core.ErrClosed)
}
