package gfs

import (
	"context"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/dircache"
)

// overlays are the lazily-allocated staging structures of spec.md §3.
// A nil map/set means "no edits of this kind pending" — this preserves
// invariant I1 (insertions and deletions are mutually exclusive in
// time) syntactically rather than through a runtime flag.
type overlays struct {
	insertions   map[string]dircache.Entry
	insertedDirs map[string]struct{}
	deletions    map[string]struct{}
	deletedDirs  map[string]int
}

// stageFileInsertion records path as a pending insertion, flushing any
// pending deletions first per I1. Grounded in spec.md §4.3.
func (fs *Filesystem) stageFileInsertion(ctx context.Context, path string, entry dircache.Entry) error {
	if err := fs.flushDeletions(ctx); err != nil {
		return err
	}
	if fs.insertions == nil {
		fs.insertions = make(map[string]dircache.Entry)
		fs.insertedDirs = make(map[string]struct{})
	}
	fs.insertions[path] = entry

	core.Ancestors(path, func(ancestor string) bool {
		if _, already := fs.insertedDirs[ancestor]; already {
			return false
		}
		fs.insertedDirs[ancestor] = struct{}{}
		return true
	})
	return nil
}

// stageFileDeletion records path as a pending deletion, flushing any
// pending insertions first per I1. Grounded in spec.md §4.3.
func (fs *Filesystem) stageFileDeletion(ctx context.Context, path string) error {
	if err := fs.flushInsertions(ctx); err != nil {
		return err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}
	if fs.deletions == nil {
		fs.deletions = make(map[string]struct{})
		fs.deletedDirs = make(map[string]int)
	}
	fs.deletions[path] = struct{}{}

	var underflow error
	core.Ancestors(path, func(ancestor string) bool {
		if _, seeded := fs.deletedDirs[ancestor]; !seeded {
			fs.deletedDirs[ancestor] = len(fs.cache.EntriesWithin(ancestor))
		}
		if fs.deletedDirs[ancestor] == 0 {
			underflow = core.NewOpError("stageFileDeletion", path, core.ErrIllegalState, nil)
			return false
		}
		fs.deletedDirs[ancestor]--
		return true
	})
	return underflow
}

// flushInsertions applies any pending insertions to the cache via a
// dircache.Builder and clears the overlay.
func (fs *Filesystem) flushInsertions(ctx context.Context) error {
	if fs.insertions == nil {
		return nil
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}
	dircache.NewBuilder(fs.cache, fs.insertions).Apply()
	fs.insertions = nil
	fs.insertedDirs = nil
	return nil
}

// flushDeletions applies any pending deletions to the cache via a
// dircache.Editor and clears the overlay.
func (fs *Filesystem) flushDeletions(ctx context.Context) error {
	if fs.deletions == nil {
		return nil
	}
	dircache.NewEditor(fs.cache, fs.deletions).Apply()
	fs.deletions = nil
	fs.deletedDirs = nil
	return nil
}

// flushStagedChanges applies insertions, then deletions — order
// matters: post-flush the cache reflects both (spec.md §4.3).
func (fs *Filesystem) flushStagedChanges(ctx context.Context) error {
	if err := fs.flushInsertions(ctx); err != nil {
		return err
	}
	return fs.flushDeletions(ctx)
}
