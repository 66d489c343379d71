package gfs

import (
	"context"
	"strings"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/dircache"
	"github.com/basaltfs/gfs/pkg/objstore"
)

// resolveFileLocked resolves path to a blob id without distinguishing
// "directory" from "does not exist" — both report ok=false. Used by
// mutating operations that need to tell those two apart themselves.
func (fs *Filesystem) resolveFileLocked(ctx context.Context, path string) (core.ObjectID, bool, error) {
	if e, ok := fs.insertions[path]; ok {
		return e.ID, true, nil
	}
	if _, deleted := fs.deletions[path]; deleted {
		return core.Zero, false, nil
	}
	if fs.cache != nil {
		entry, ok := fs.cache.Lookup(path)
		if !ok {
			return core.Zero, false, nil
		}
		return entry.ID, true, nil
	}
	entry, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return core.Zero, false, err
	}
	if !ok || entry.Mode == core.Tree {
		return core.Zero, false, nil
	}
	return entry.ID, true, nil
}

func isWriteOpen(opts OpenOptions) bool {
	return opts.Has(OpenWrite) || opts.Has(OpenCreate) || opts.Has(OpenCreateNew) ||
		opts.Has(OpenAppend) || opts.Has(OpenTruncate)
}

// NewByteChannel implements spec.md §4.2's channel-opening contract.
func (fs *Filesystem) NewByteChannel(ctx context.Context, path string, opts OpenOptions) (*Channel, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("NewByteChannel"); err != nil {
		return nil, err
	}
	writing := isWriteOpen(opts)
	if writing && fs.streams.blocksMutation(path) {
		return nil, core.NewOpError("NewByteChannel", path, core.ErrIllegalState, nil)
	}

	isDir, err := fs.isDirectoryLocked(ctx, path)
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, core.NewOpError("NewByteChannel", path, core.ErrIllegalState, nil)
	}

	id, exists, err := fs.resolveFileLocked(ctx, path)
	if err != nil {
		return nil, err
	}

	switch {
	case !exists && !opts.Has(OpenCreate) && !opts.Has(OpenCreateNew):
		return nil, core.NewOpError("NewByteChannel", path, core.ErrNoSuchFile, nil)
	case exists && opts.Has(OpenCreateNew):
		return nil, core.NewOpError("NewByteChannel", path, core.ErrFileExists, nil)
	case !exists:
		parentFile, err := fs.isRegularFileLocked(ctx, core.Parent(path))
		if err != nil {
			return nil, err
		}
		if parentFile {
			return nil, core.NewOpError("NewByteChannel", path, core.ErrNoSuchFile, nil)
		}
	}

	ch, open := fs.channels[path]
	if !open {
		var initial []byte
		if exists && !id.IsZero() {
			initial, err = fs.store.ReadBlob(ctx, id)
			if err != nil {
				return nil, err
			}
		}
		ch = newMemChannel(path, initial)
		fs.channels[path] = ch
	}
	if opts.Has(OpenTruncate) {
		ch.mu.Lock()
		ch.buf = ch.buf[:0]
		ch.modified = true
		ch.mu.Unlock()
	}
	ch.mu.Lock()
	ch.attached++
	ch.mu.Unlock()

	if !exists {
		mode := core.RegularFile
		if err := fs.stageFileInsertion(ctx, path, dircache.Entry{Path: path, Mode: mode, ID: core.Zero}); err != nil {
			return nil, err
		}
	}

	var offset int64
	if opts.Has(OpenAppend) {
		offset = ch.size()
	}
	return &Channel{
		fs:       fs,
		ch:       ch,
		offset:   offset,
		readable: opts.Has(OpenRead),
		writable: writing,
	}, nil
}

// Delete implements spec.md §4.2. A path reporting as a directory is
// always non-empty by construction (an emptied directory stops
// reporting as one, per isDirectoryLocked), so Delete on a directory
// always fails with ErrDirectoryNotEmpty rather than ever succeeding.
// Per invariant I7, a regular file with an attached memory channel (an
// open, unclosed handle) refuses deletion outright rather than
// deleting out from under the handle.
func (fs *Filesystem) Delete(ctx context.Context, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("Delete"); err != nil {
		return err
	}
	if fs.streams.blocksMutation(path) {
		return core.NewOpError("Delete", path, core.ErrIllegalState, nil)
	}
	isDir, err := fs.isDirectoryLocked(ctx, path)
	if err != nil {
		return err
	}
	if isDir {
		return core.NewOpError("Delete", path, core.ErrDirectoryNotEmpty, nil)
	}
	isFile, err := fs.isRegularFileLocked(ctx, path)
	if err != nil {
		return err
	}
	if !isFile {
		return core.NewOpError("Delete", path, core.ErrNoSuchFile, nil)
	}
	if ch, open := fs.channels[path]; open {
		ch.mu.Lock()
		attached := ch.attached
		ch.mu.Unlock()
		if attached > 0 {
			return core.NewOpError("Delete", path, core.ErrAccessDenied, nil)
		}
		delete(fs.channels, path)
	}
	return fs.stageFileDeletion(ctx, path)
}

// Copy implements spec.md §4.2's file and directory copy. Both Copy
// and Move flush and materialize the cache up front rather than
// reasoning about the overlay maps directly — unlike the single-path
// staging operations, a recursive tree copy genuinely needs a
// consistent enumerable snapshot to walk.
func (fs *Filesystem) Copy(ctx context.Context, from, to string, replaceExisting bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("Copy"); err != nil {
		return err
	}
	if fs.streams.blocksMutation(from) || fs.streams.blocksMutation(to) {
		return core.NewOpError("Copy", to, core.ErrIllegalState, nil)
	}
	if err := fs.flushStagedChanges(ctx); err != nil {
		return err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}
	return fs.copyLocked(ctx, from, to, replaceExisting)
}

func (fs *Filesystem) copyLocked(ctx context.Context, from, to string, replaceExisting bool) error {
	switch {
	case fs.cache.FileExists(from):
		return fs.copyFileLocked(ctx, from, to, replaceExisting)
	case fs.cache.IsNonTrivialDirectory(from):
		return fs.copyDirectoryLocked(ctx, from, to, replaceExisting)
	default:
		return core.NewOpError("Copy", from, core.ErrNoSuchFile, nil)
	}
}

func (fs *Filesystem) copyFileLocked(ctx context.Context, from, to string, replaceExisting bool) error {
	if fs.cache.IsNonTrivialDirectory(to) {
		return core.NewOpError("Copy", to, core.ErrIllegalState, nil)
	}
	if fs.cache.FileExists(to) && !replaceExisting {
		return core.NewOpError("Copy", to, core.ErrFileExists, nil)
	}
	src, _ := fs.cache.Lookup(from)
	if ch, open := fs.channels[from]; open && from != to {
		ch.mu.Lock()
		clone := newMemChannel(to, ch.buf)
		clone.modified = ch.modified
		ch.mu.Unlock()
		fs.channels[to] = clone
	} else if from != to {
		delete(fs.channels, to)
	}
	return fs.stageFileInsertion(ctx, to, dircache.Entry{Path: to, Mode: src.Mode, ID: src.ID})
}

func (fs *Filesystem) copyDirectoryLocked(ctx context.Context, from, to string, replaceExisting bool) error {
	if fs.cache.FileExists(to) {
		return core.NewOpError("Copy", to, core.ErrIllegalState, nil)
	}
	if fs.cache.IsNonTrivialDirectory(to) && !replaceExisting {
		return core.NewOpError("Copy", to, core.ErrFileExists, nil)
	}
	for _, e := range fs.cache.EntriesWithin(from) {
		rel := strings.TrimPrefix(e.Path, from+"/")
		dest := core.Join(to, rel)
		if err := fs.stageFileInsertion(ctx, dest, dircache.Entry{Path: dest, Mode: e.Mode, ID: e.ID}); err != nil {
			return err
		}
	}
	return nil
}

// Move implements spec.md §4.2's rename, as a copy followed by a
// recursive delete of the source.
func (fs *Filesystem) Move(ctx context.Context, from, to string, replaceExisting bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("Move"); err != nil {
		return err
	}
	if fs.streams.blocksMutation(from) || fs.streams.blocksMutation(to) {
		return core.NewOpError("Move", to, core.ErrIllegalState, nil)
	}
	if err := fs.flushStagedChanges(ctx); err != nil {
		return err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}

	switch {
	case fs.cache.FileExists(from):
		if err := fs.copyFileLocked(ctx, from, to, replaceExisting); err != nil {
			return err
		}
		delete(fs.channels, from)
		return fs.stageFileDeletion(ctx, from)
	case fs.cache.IsNonTrivialDirectory(from):
		moved := fs.cache.EntriesWithin(from)
		if err := fs.copyDirectoryLocked(ctx, from, to, replaceExisting); err != nil {
			return err
		}
		for _, e := range moved {
			delete(fs.channels, e.Path)
			if err := fs.stageFileDeletion(ctx, e.Path); err != nil {
				return err
			}
		}
		return nil
	default:
		return core.NewOpError("Move", from, core.ErrNoSuchFile, nil)
	}
}

// NewDirectoryStream implements spec.md §4.2. The stream walks a
// snapshot taken now; edits staged afterward never change what it
// reports (see DirStream).
func (fs *Filesystem) NewDirectoryStream(ctx context.Context, path string, filter DirEntryFilter) (*DirStream, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("NewDirectoryStream"); err != nil {
		return nil, err
	}
	isDir, err := fs.isDirectoryLocked(ctx, path)
	if err != nil {
		return nil, err
	}
	if !isDir && !core.IsRoot(path) {
		return nil, core.NewOpError("NewDirectoryStream", path, core.ErrNotADirectory, nil)
	}
	if err := fs.flushStagedChanges(ctx); err != nil {
		return nil, err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return nil, err
	}

	prefix := path
	if prefix != "" {
		prefix += "/"
	}
	seenDirs := make(map[string]struct{})
	var entries []DirEntry
	for _, e := range fs.cache.EntriesWithin(path) {
		rel := strings.TrimPrefix(e.Path, prefix)
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			name := rel[:i]
			if _, dup := seenDirs[name]; dup {
				continue
			}
			seenDirs[name] = struct{}{}
			entries = append(entries, DirEntry{Name: name, Mode: core.Tree})
		} else {
			entries = append(entries, DirEntry{Name: rel, Mode: e.Mode, ID: e.ID})
		}
	}

	ds := &DirStream{fs: fs, path: path, filter: filter, entries: entries}
	fs.streams.register(path)
	return ds, nil
}

// WriteAndUpdateTree implements spec.md §4.2: it persists every
// modified memory channel as a blob, flushes the staged overlays into
// the cache, and writes the cache out as a new tree object. Per
// spec.md's none contract: if nothing has ever touched the cache or
// overlays and no channel is modified, or if the resulting tree is
// byte-for-byte the current base tree, wrote is false and no new tree
// is produced or assigned.
func (fs *Filesystem) WriteAndUpdateTree(ctx context.Context) (treeID core.ObjectID, wrote bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("WriteAndUpdateTree"); err != nil {
		return core.Zero, false, err
	}
	return fs.writeAndUpdateTreeLocked(ctx)
}

func (fs *Filesystem) writeAndUpdateTreeLocked(ctx context.Context) (core.ObjectID, bool, error) {
	if fs.cache == nil && fs.insertions == nil && fs.deletions == nil && !fs.anyChannelModified() {
		return core.Zero, false, nil
	}

	for path, ch := range fs.channels {
		ch.mu.Lock()
		modified := ch.modified
		var data []byte
		if modified {
			data = append([]byte(nil), ch.buf...)
			ch.modified = false
		}
		ch.mu.Unlock()
		if !modified {
			continue
		}
		id, err := fs.store.InsertBlob(ctx, data)
		if err != nil {
			return core.Zero, false, err
		}
		mode := core.RegularFile
		if existing, ok := fs.insertions[path]; ok {
			mode = existing.Mode
		}
		if err := fs.stageFileInsertion(ctx, path, dircache.Entry{Path: path, Mode: mode, ID: id}); err != nil {
			return core.Zero, false, err
		}
	}
	if err := fs.flushStagedChanges(ctx); err != nil {
		return core.Zero, false, err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return core.Zero, false, err
	}
	treeID, err := fs.cache.WriteTree(ctx, fs.store)
	if err != nil {
		return core.Zero, false, err
	}
	if treeID == fs.baseTree {
		return core.Zero, false, nil
	}
	fs.baseTree = treeID
	return treeID, true, nil
}

func (fs *Filesystem) anyChannelModified() bool {
	for _, ch := range fs.channels {
		ch.mu.Lock()
		modified := ch.modified
		ch.mu.Unlock()
		if modified {
			return true
		}
	}
	return false
}

// WriteAndUpdateCommit implements spec.md §4.2's commit path: it
// writes the tree, then inserts and links a new commit object onto
// the attached branch ref. amend replaces the branch head's current
// commit outright instead of extending it with a new parent.
// committed is false when writeAndUpdateTree returned none — there is
// nothing to commit, and no commit object or ref update happens.
func (fs *Filesystem) WriteAndUpdateCommit(ctx context.Context, author, committer objstore.Identity, message string, amend bool) (commitID core.ObjectID, committed bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("WriteAndUpdateCommit"); err != nil {
		return core.Zero, false, err
	}
	if fs.branchRef == "" {
		return core.Zero, false, core.NewOpError("WriteAndUpdateCommit", "", core.ErrUnsupported, nil)
	}

	treeID, wrote, err := fs.writeAndUpdateTreeLocked(ctx)
	if err != nil {
		return core.Zero, false, err
	}
	if !wrote {
		return core.Zero, false, nil
	}

	var parents []core.ObjectID
	switch {
	case amend:
		if fs.baseCommitID.IsZero() {
			return core.Zero, false, core.NewOpError("WriteAndUpdateCommit", fs.branchRef, core.ErrIllegalState, nil)
		}
		prior, found, err := fs.store.ReadCommit(ctx, fs.baseCommitID)
		if err != nil {
			return core.Zero, false, err
		}
		if !found {
			return core.Zero, false, core.NewOpError("WriteAndUpdateCommit", fs.branchRef, core.ErrIllegalState, nil)
		}
		parents = prior.Parents
	case !fs.baseCommitID.IsZero():
		parents = []core.ObjectID{fs.baseCommitID}
	}

	newCommitID, err := fs.store.InsertCommit(ctx, objstore.Commit{
		Tree:      treeID,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   message,
	})
	if err != nil {
		return core.Zero, false, err
	}

	switch {
	case amend:
		err = fs.store.AmendBranchHead(ctx, fs.branchRef, newCommitID, message)
	case fs.baseCommitID.IsZero():
		err = fs.store.InitBranchHead(ctx, fs.branchRef, newCommitID, message)
	default:
		err = fs.store.CommitBranchHead(ctx, fs.branchRef, fs.baseCommitID, newCommitID, message)
	}
	if err != nil {
		return core.Zero, false, err
	}

	fs.baseCommitID = newCommitID
	return newCommitID, true, nil
}

// ReplaceWorkingTree implements the merge engine's "leave the mutable
// filesystem populated with the best-effort merged state" contract
// (spec.md §4.4): every path in files is staged as an insertion, and
// every path currently in the tree but absent from files is staged as
// a deletion, reusing the normal overlay mechanics so a subsequent
// WriteAndUpdateTree/WriteAndUpdateCommit by the caller persists it.
func (fs *Filesystem) ReplaceWorkingTree(ctx context.Context, files map[string]dircache.Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen("ReplaceWorkingTree"); err != nil {
		return err
	}
	if err := fs.flushStagedChanges(ctx); err != nil {
		return err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}

	for _, e := range fs.cache.EntriesWithin("") {
		if _, keep := files[e.Path]; !keep {
			if err := fs.stageFileDeletion(ctx, e.Path); err != nil {
				return err
			}
		}
	}
	for path, entry := range files {
		existing, ok := fs.cache.Lookup(path)
		if ok && existing.Mode == entry.Mode && existing.ID == entry.ID {
			continue
		}
		entry.Path = path
		if err := fs.stageFileInsertion(ctx, path, entry); err != nil {
			return err
		}
	}
	return nil
}
