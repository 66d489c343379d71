// Package gfs is the staging engine: an in-memory, POSIX-style
// filesystem layered over a content-addressed object store, with
// edits accumulating as staged insertions, deletions, and per-file
// byte buffers until committed back to the store as a new tree.
package gfs

import (
	"context"
	"sync"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/dircache"
	"github.com/basaltfs/gfs/pkg/objstore"
)

// Filesystem is the single aggregate of spec.md §3: root path, object
// store handle, optional branch ref and base commit/tree, lazily
// initialized cache, memory channels, directory streams, and staged
// overlays. Every public method that reads or changes this state takes
// the filesystem's single exclusive lock for its full duration (§5) —
// there is no suspension point or re-entry within it. Store and
// Attribute only reach the object store and take no lock.
type Filesystem struct {
	mu sync.Mutex

	store   objstore.Store
	repoDir string

	branchRef    string // "" means detached
	baseCommitID core.ObjectID
	baseTree     core.ObjectID

	cache    *dircache.Cache
	channels map[string]*memChannel
	streams  *dirStreamRegistry
	closed   bool
	state    core.State

	overlays
}

// New opens an attached filesystem rooted at branchRef's current
// commit (or an empty tree if the branch does not yet exist).
func New(ctx context.Context, store objstore.Store, repoDir, branchRef string) (*Filesystem, error) {
	fs := &Filesystem{
		store:     store,
		repoDir:   repoDir,
		branchRef: branchRef,
		channels:  make(map[string]*memChannel),
		streams:   newDirStreamRegistry(),
	}

	commitID, ok, err := store.ResolveRef(ctx, branchRef)
	if err != nil {
		return nil, err
	}
	if ok {
		fs.baseCommitID = commitID
		commit, found, err := store.ReadCommit(ctx, commitID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, core.NewOpError("New", branchRef, core.ErrIllegalState, nil)
		}
		fs.baseTree = commit.Tree
	}
	return fs, nil
}

// NewDetached opens a filesystem rooted directly at baseTree, with no
// branch reference to advance on commit.
func NewDetached(store objstore.Store, repoDir string, baseTree core.ObjectID) *Filesystem {
	return &Filesystem{
		store:    store,
		repoDir:  repoDir,
		baseTree: baseTree,
		channels: make(map[string]*memChannel),
		streams:  newDirStreamRegistry(),
	}
}

func (fs *Filesystem) checkOpen(op string) error {
	if fs.closed {
		return core.NewOpError(op, "", core.ErrClosed, nil)
	}
	return nil
}

// ensureCache lazily builds the directory cache from the base tree.
// Per the "base-tree vs cache duality" design note, this must not be
// skipped on any mutation path — every mutating operation reaches it
// before touching fs.cache.
func (fs *Filesystem) ensureCache(ctx context.Context) error {
	if fs.cache != nil {
		return nil
	}
	cache, err := dircache.ForTree(ctx, fs.store, fs.baseTree)
	if err != nil {
		return err
	}
	fs.cache = cache
	return nil
}

// State returns the observable lifecycle tag.
func (fs *Filesystem) State() core.State {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state
}

// SetState sets the observable lifecycle tag. The core never
// transitions this itself except from the merge engine (see
// pkg/merge) — callers layered above use it as a coordination hint,
// per spec.md §6.
func (fs *Filesystem) SetState(s core.State) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.state = s
}

// IsRegularFile implements spec.md §4.2.
func (fs *Filesystem) IsRegularFile(ctx context.Context, path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("IsRegularFile"); err != nil {
		return false, err
	}
	return fs.isRegularFileLocked(ctx, path)
}

func (fs *Filesystem) isRegularFileLocked(ctx context.Context, path string) (bool, error) {
	if core.IsRoot(path) {
		return false, nil
	}
	if _, deleted := fs.deletions[path]; deleted {
		return false, nil
	}
	if _, inserted := fs.insertions[path]; inserted {
		return true, nil
	}
	if fs.cache != nil {
		return fs.cache.FileExists(path), nil
	}
	entry, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return false, err
	}
	return ok && entry.Mode.IsFile(), nil
}

// IsDirectory implements spec.md §4.2.
func (fs *Filesystem) IsDirectory(ctx context.Context, path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("IsDirectory"); err != nil {
		return false, err
	}
	return fs.isDirectoryLocked(ctx, path)
}

func (fs *Filesystem) isDirectoryLocked(ctx context.Context, path string) (bool, error) {
	if core.IsRoot(path) {
		return true, nil
	}
	if remaining, tracked := fs.deletedDirs[path]; tracked && remaining == 0 {
		return false, nil
	}
	if _, inserted := fs.insertedDirs[path]; inserted {
		return true, nil
	}
	if fs.cache != nil {
		return fs.cache.IsNonTrivialDirectory(path), nil
	}
	entry, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return false, err
	}
	return ok && entry.Mode == core.Tree, nil
}

// GetFileBlobID implements spec.md §4.2. found is false when path
// names a directory ("none" in the spec's phrasing); err is
// ErrNoSuchFile when path resolves to nothing at all.
func (fs *Filesystem) GetFileBlobID(ctx context.Context, path string) (id core.ObjectID, found bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("GetFileBlobID"); err != nil {
		return core.Zero, false, err
	}
	return fs.getFileBlobIDLocked(ctx, path)
}

func (fs *Filesystem) getFileBlobIDLocked(ctx context.Context, path string) (core.ObjectID, bool, error) {
	if e, ok := fs.insertions[path]; ok {
		return e.ID, true, nil
	}
	isDir, err := fs.isDirectoryLocked(ctx, path)
	if err != nil {
		return core.Zero, false, err
	}
	if isDir {
		return core.Zero, false, nil
	}
	if fs.cache != nil {
		entry, ok := fs.cache.Lookup(path)
		if !ok {
			return core.Zero, false, core.NewOpError("GetFileBlobID", path, core.ErrNoSuchFile, nil)
		}
		return entry.ID, true, nil
	}
	entry, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return core.Zero, false, err
	}
	if !ok {
		return core.Zero, false, core.NewOpError("GetFileBlobID", path, core.ErrNoSuchFile, nil)
	}
	return entry.ID, true, nil
}

// GetFileSize implements spec.md §4.2.
func (fs *Filesystem) GetFileSize(ctx context.Context, path string) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("GetFileSize"); err != nil {
		return 0, err
	}
	if ch, ok := fs.channels[path]; ok {
		return ch.size(), nil
	}
	isDir, err := fs.isDirectoryLocked(ctx, path)
	if err != nil {
		return 0, err
	}
	if isDir {
		return 0, nil
	}
	id, found, err := fs.getFileBlobIDLocked(ctx, path)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	size, err := fs.store.ReadBlobSize(ctx, id)
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

// Close is idempotent: closes every memory channel, deregisters every
// directory stream, clears the cache, and releases the store.
func (fs *Filesystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	fs.closed = true
	fs.channels = nil
	fs.streams.closeAll()
	fs.cache = nil
	return fs.store.Close()
}

// Name implements spec.md §6's store-name contract.
func (fs *Filesystem) Name() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	commitHex := ""
	if !fs.baseCommitID.IsZero() {
		commitHex = fs.baseCommitID.String()
	}
	treeHex := ""
	if !fs.baseTree.IsZero() {
		treeHex = fs.baseTree.String()
	}
	return fs.repoDir + ":" + fs.branchRef + ":" + commitHex + ":" + treeHex
}

// Type implements spec.md §6's attached/detached contract.
func (fs *Filesystem) Type() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.branchRef == "" {
		return "detached"
	}
	return "attached"
}

// Attribute implements spec.md §6's file-store attribute contract by
// delegating to the underlying object store.
func (fs *Filesystem) Attribute(name string) (uint64, error) {
	return fs.store.Attribute(name)
}

// Store returns the backing object store. Exported for collaborators
// such as the merge engine that must read/insert objects directly
// against the same store this filesystem is rooted in.
func (fs *Filesystem) Store() objstore.Store {
	return fs.store
}

// BaseTree returns the filesystem's current base tree id.
func (fs *Filesystem) BaseTree() core.ObjectID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.baseTree
}

func (fs *Filesystem) releaseChannel(ch *memChannel) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ch.mu.Lock()
	ch.attached--
	unmodified := !ch.modified && ch.attached == 0
	ch.mu.Unlock()
	if unmodified {
		delete(fs.channels, ch.path)
	}
}

func (fs *Filesystem) deregisterStream(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.streams.deregister(path)
}
