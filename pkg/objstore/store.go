// Package objstore is the object-store adapter consumed by the staging
// engine and merger: blob/tree read and insert, and branch reference
// updates with reflog bookkeeping. It is the one external collaborator
// spec.md calls out of scope for its own invariants, but a concrete
// repository needs a real implementation to exercise the core against —
// BoltStore and MemStore below provide that.
package objstore

import (
	"context"

	"github.com/basaltfs/gfs/pkg/core"
)

// TreeEntry is one child of a tree object as seen by WalkTree.
type TreeEntry struct {
	Mode core.FileMode
	ID   core.ObjectID
}

// ReflogEntry is one append-only record of a reference update.
type ReflogEntry struct {
	Old     core.ObjectID
	New     core.ObjectID
	Message string
}

// Store is the object-store adapter interface of SPEC_FULL.md §4.
type Store interface {
	// ReadBlob returns the raw bytes of the blob named by id.
	ReadBlob(ctx context.Context, id core.ObjectID) ([]byte, error)
	// ReadBlobSize returns the stored byte length of the blob named by
	// id without necessarily reading its full content.
	ReadBlobSize(ctx context.Context, id core.ObjectID) (uint64, error)
	// WalkTree resolves path within the tree named by treeID, returning
	// ok=false if no entry exists at that path. An empty path resolves
	// to the tree itself.
	WalkTree(ctx context.Context, treeID core.ObjectID, path string) (entry TreeEntry, ok bool, err error)
	// ListTree returns the direct children of the tree named by
	// treeID, keyed by name.
	ListTree(ctx context.Context, treeID core.ObjectID) (map[string]TreeEntry, error)
	// InsertBlob stores data as a new blob and returns its id.
	// Identical content always yields an identical id.
	InsertBlob(ctx context.Context, data []byte) (core.ObjectID, error)
	// InsertTree stores a tree (name -> TreeEntry), serialized in name
	// order, and returns its id.
	InsertTree(ctx context.Context, entries map[string]TreeEntry) (core.ObjectID, error)
	// ReadCommit resolves a commit object. Not part of the minimal
	// spec.md §4.5 surface, but required for WriteAndUpdateCommit's
	// amend path ("baseCommit.parents") and for resolving a branch ref
	// to its tree at filesystem construction time.
	ReadCommit(ctx context.Context, id core.ObjectID) (Commit, bool, error)
	// InsertCommit stores a new commit object and returns its id.
	InsertCommit(ctx context.Context, c Commit) (core.ObjectID, error)
	// Flush persists any buffered inserts. Safe to call when nothing is
	// buffered.
	Flush(ctx context.Context) error

	// UpdateRef performs a compare-and-swap update of name's value:
	// the update is rejected unless force is true or the ref's current
	// value equals expectedOld. A reflog entry is appended on success.
	UpdateRef(ctx context.Context, name string, newID core.ObjectID, expectedOld core.ObjectID, force bool, reflogMessage string) error
	// ResolveRef returns the current value of name, and ok=false if the
	// ref does not exist.
	ResolveRef(ctx context.Context, name string) (id core.ObjectID, ok bool, err error)
	// ReflogEntries returns the reflog for name, oldest first.
	ReflogEntries(ctx context.Context, name string) ([]ReflogEntry, error)

	// InitBranchHead advances name from the zero id to commitID — the
	// very first commit on a branch.
	InitBranchHead(ctx context.Context, name string, commitID core.ObjectID, shortMessage string) error
	// CommitBranchHead advances name to commitID as an ordinary commit.
	CommitBranchHead(ctx context.Context, name string, expectedOld core.ObjectID, commitID core.ObjectID, shortMessage string) error
	// AmendBranchHead force-replaces name's value with commitID.
	AmendBranchHead(ctx context.Context, name string, commitID core.ObjectID, shortMessage string) error
	// ResetBranchHead force-replaces name's value with commitID,
	// independent of commit history (e.g. a hard reset).
	ResetBranchHead(ctx context.Context, name string, commitID core.ObjectID) error

	// Attribute implements the §6 file-store attribute query contract:
	// totalSpace/usableSpace/unallocatedSpace, or ErrUnsupported.
	Attribute(name string) (uint64, error)

	// Close releases any resources (file handles) held by the store.
	Close() error
}
