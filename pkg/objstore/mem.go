package objstore

import (
	"context"
	"strings"
	"sync"

	"github.com/basaltfs/gfs/pkg/core"
)

// MemStore is a volatile, map-backed Store for tests, following the
// teacher's fstest.MapFS-backed TestFileSystem: same interface as the
// real backend, no file on disk. Every public method takes the same
// mutex the staging engine would otherwise rely on the filesystem lock
// to avoid — MemStore may be shared by tests that don't hold that
// lock themselves.
type MemStore struct {
	mu      sync.Mutex
	objects map[core.ObjectID]storedObject
	refs    map[string]core.ObjectID
	reflogs map[string][]ReflogEntry
}

type storedObject struct {
	kind objectKind
	data []byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[core.ObjectID]storedObject),
		refs:    make(map[string]core.ObjectID),
		reflogs: make(map[string][]ReflogEntry),
	}
}

func (s *MemStore) ReadBlob(_ context.Context, id core.ObjectID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.kind != kindBlob {
		return nil, core.NewOpError("ReadBlob", id.String(), core.ErrNoSuchFile, nil)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (s *MemStore) ReadBlobSize(ctx context.Context, id core.ObjectID) (uint64, error) {
	if id.IsZero() {
		return 0, nil
	}
	b, err := s.ReadBlob(ctx, id)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}

func (s *MemStore) WalkTree(_ context.Context, treeID core.ObjectID, path string) (TreeEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walkTreeLocked(treeID, path)
}

func (s *MemStore) walkTreeLocked(treeID core.ObjectID, path string) (TreeEntry, bool, error) {
	if path == "" {
		return TreeEntry{Mode: core.Tree, ID: treeID}, true, nil
	}
	obj, ok := s.objects[treeID]
	if !ok || obj.kind != kindTree {
		return TreeEntry{}, false, nil
	}
	entries, err := decodeTree(obj.data)
	if err != nil {
		return TreeEntry{}, false, core.NewOpError("WalkTree", path, core.ErrIO, err)
	}
	segment := path
	rest := ""
	if i := strings.IndexByte(path, '/'); i >= 0 {
		segment, rest = path[:i], path[i+1:]
	}
	entry, ok := entries[segment]
	if !ok {
		return TreeEntry{}, false, nil
	}
	if rest == "" {
		return entry, true, nil
	}
	if entry.Mode != core.Tree {
		return TreeEntry{}, false, nil
	}
	return s.walkTreeLocked(entry.ID, rest)
}

func (s *MemStore) ListTree(_ context.Context, treeID core.ObjectID) (map[string]TreeEntry, error) {
	if treeID.IsZero() {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[treeID]
	if !ok || obj.kind != kindTree {
		return nil, core.NewOpError("ListTree", treeID.String(), core.ErrNoSuchFile, nil)
	}
	entries, err := decodeTree(obj.data)
	if err != nil {
		return nil, core.NewOpError("ListTree", treeID.String(), core.ErrIO, err)
	}
	return entries, nil
}

func (s *MemStore) InsertBlob(_ context.Context, data []byte) (core.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := hashObject(kindBlob, data)
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[id] = storedObject{kind: kindBlob, data: cp}
	return id, nil
}

func (s *MemStore) InsertTree(_ context.Context, entries map[string]TreeEntry) (core.ObjectID, error) {
	payload, err := encodeTree(entries)
	if err != nil {
		return core.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := hashObject(kindTree, payload)
	s.objects[id] = storedObject{kind: kindTree, data: payload}
	return id, nil
}

func (s *MemStore) ReadCommit(_ context.Context, id core.ObjectID) (Commit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.kind != kindCommit {
		return Commit{}, false, nil
	}
	c, err := decodeCommit(obj.data)
	if err != nil {
		return Commit{}, false, core.NewOpError("ReadCommit", id.String(), core.ErrIO, err)
	}
	return c, true, nil
}

func (s *MemStore) InsertCommit(_ context.Context, c Commit) (core.ObjectID, error) {
	payload := encodeCommit(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := hashObject(kindCommit, payload)
	s.objects[id] = storedObject{kind: kindCommit, data: payload}
	return id, nil
}

func (s *MemStore) Flush(_ context.Context) error { return nil }

func (s *MemStore) UpdateRef(_ context.Context, name string, newID core.ObjectID, expectedOld core.ObjectID, force bool, reflogMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.refs[name]
	if !force && current != expectedOld {
		return core.NewOpError("UpdateRef", name, core.ErrIllegalState, nil)
	}
	s.refs[name] = newID
	s.reflogs[name] = append(s.reflogs[name], ReflogEntry{Old: current, New: newID, Message: reflogMessage})
	return nil
}

func (s *MemStore) ResolveRef(_ context.Context, name string) (core.ObjectID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refs[name]
	return id, ok, nil
}

func (s *MemStore) ReflogEntries(_ context.Context, name string) ([]ReflogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReflogEntry, len(s.reflogs[name]))
	copy(out, s.reflogs[name])
	return out, nil
}

func (s *MemStore) InitBranchHead(ctx context.Context, name string, commitID core.ObjectID, shortMessage string) error {
	return s.UpdateRef(ctx, name, commitID, core.Zero, false, "commit (initial): "+shortMessage)
}

func (s *MemStore) CommitBranchHead(ctx context.Context, name string, expectedOld core.ObjectID, commitID core.ObjectID, shortMessage string) error {
	return s.UpdateRef(ctx, name, commitID, expectedOld, false, "commit: "+shortMessage)
}

func (s *MemStore) AmendBranchHead(ctx context.Context, name string, commitID core.ObjectID, shortMessage string) error {
	return s.UpdateRef(ctx, name, commitID, core.Zero, true, "commit (amend): "+shortMessage)
}

func (s *MemStore) ResetBranchHead(ctx context.Context, name string, commitID core.ObjectID) error {
	return s.UpdateRef(ctx, name, commitID, core.Zero, true, "updating HEAD")
}

// Attribute returns a fixed synthetic capacity for the three
// recognized names — MemStore has no backing disk to stat.
func (s *MemStore) Attribute(name string) (uint64, error) {
	switch name {
	case "totalSpace", "usableSpace", "unallocatedSpace":
		return 1 << 34, nil
	default:
		return 0, core.NewOpError("Attribute", name, core.ErrUnsupported, nil)
	}
}

func (s *MemStore) Close() error { return nil }
