package objstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/basaltfs/gfs/pkg/core"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sys/unix"
)

// Bucket names within the bbolt database. A single file stands in for
// the loose-object/packfile/ref-file layout of a real Git repository:
// objectsBucket holds every blob/tree/commit keyed by id, refsBucket
// holds the current value of each ref, reflogBucket holds its history.
var (
	objectsBucket = []byte("objects")
	refsBucket    = []byte("refs")
	reflogBucket  = []byte("reflog")
)

// BoltStore is a durable Store backed by a single bbolt database file.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// OpenBoltStore opens (creating if absent) a bbolt-backed store at
// path, following the teacher pack's bolt.Open/db.Update/CreateBucket
// usage shape.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o666, nil)
	if err != nil {
		return nil, core.NewOpError("OpenBoltStore", path, core.ErrIO, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{objectsBucket, refsBucket, reflogBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, core.NewOpError("OpenBoltStore", path, core.ErrIO, err)
	}
	return &BoltStore{db: db, path: path}, nil
}

func objectKey(kind objectKind, id core.ObjectID) []byte {
	key := make([]byte, 1+core.Size)
	key[0] = byte(kind)
	copy(key[1:], id[:])
	return key
}

func (s *BoltStore) getObject(kind objectKind, id core.ObjectID) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get(objectKey(kind, id))
		if v == nil {
			return nil
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, false, core.NewOpError("getObject", id.String(), core.ErrIO, err)
	}
	return out, out != nil, nil
}

func (s *BoltStore) putObject(kind objectKind, id core.ObjectID, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(objectsBucket).Put(objectKey(kind, id), data)
	})
	if err != nil {
		return core.NewOpError("putObject", id.String(), core.ErrIO, err)
	}
	return nil
}

func (s *BoltStore) ReadBlob(_ context.Context, id core.ObjectID) ([]byte, error) {
	data, ok, err := s.getObject(kindBlob, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NewOpError("ReadBlob", id.String(), core.ErrNoSuchFile, nil)
	}
	return data, nil
}

func (s *BoltStore) ReadBlobSize(ctx context.Context, id core.ObjectID) (uint64, error) {
	if id.IsZero() {
		return 0, nil
	}
	b, err := s.ReadBlob(ctx, id)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}

func (s *BoltStore) WalkTree(ctx context.Context, treeID core.ObjectID, path string) (TreeEntry, bool, error) {
	if path == "" {
		return TreeEntry{Mode: core.Tree, ID: treeID}, true, nil
	}
	data, ok, err := s.getObject(kindTree, treeID)
	if err != nil {
		return TreeEntry{}, false, err
	}
	if !ok {
		return TreeEntry{}, false, nil
	}
	entries, err := decodeTree(data)
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
	return s.WalkTree(ctx, entry.ID, rest)
}

func (s *BoltStore) ListTree(_ context.Context, treeID core.ObjectID) (map[string]TreeEntry, error) {
	if treeID.IsZero() {
		return nil, nil
	}
	data, ok, err := s.getObject(kindTree, treeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NewOpError("ListTree", treeID.String(), core.ErrNoSuchFile, nil)
	}
	entries, err := decodeTree(data)
	if err != nil {
		return nil, core.NewOpError("ListTree", treeID.String(), core.ErrIO, err)
	}
	return entries, nil
}

func (s *BoltStore) InsertBlob(_ context.Context, data []byte) (core.ObjectID, error) {
	id := hashObject(kindBlob, data)
	if err := s.putObject(kindBlob, id, data); err != nil {
		return core.Zero, err
	}
	return id, nil
}

func (s *BoltStore) InsertTree(_ context.Context, entries map[string]TreeEntry) (core.ObjectID, error) {
	payload, err := encodeTree(entries)
	if err != nil {
		return core.Zero, err
	}
	id := hashObject(kindTree, payload)
	if err := s.putObject(kindTree, id, payload); err != nil {
		return core.Zero, err
	}
	return id, nil
}

func (s *BoltStore) ReadCommit(_ context.Context, id core.ObjectID) (Commit, bool, error) {
	data, ok, err := s.getObject(kindCommit, id)
	if err != nil || !ok {
		return Commit{}, ok, err
	}
	c, err := decodeCommit(data)
	if err != nil {
		return Commit{}, false, core.NewOpError("ReadCommit", id.String(), core.ErrIO, err)
	}
	return c, true, nil
}

func (s *BoltStore) InsertCommit(_ context.Context, c Commit) (core.ObjectID, error) {
	payload := encodeCommit(c)
	id := hashObject(kindCommit, payload)
	if err := s.putObject(kindCommit, id, payload); err != nil {
		return core.Zero, err
	}
	return id, nil
}

func (s *BoltStore) Flush(_ context.Context) error {
	return nil
}

// UpdateRef performs the compare-and-swap inside a single bbolt write
// transaction: the current value is re-read under the transaction (not
// trusted from a prior ResolveRef call), so concurrent updates from
// another process sharing the same database file can't race past the
// check, matching JGit's RefUpdate.
func (s *BoltStore) UpdateRef(_ context.Context, name string, newID core.ObjectID, expectedOld core.ObjectID, force bool, reflogMessage string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		refs := tx.Bucket(refsBucket)
		var current core.ObjectID
		if v := refs.Get([]byte(name)); v != nil {
			copy(current[:], v)
		}
		if !force && current != expectedOld {
			return fmt.Errorf("expected old id %s, found %s", expectedOld, current)
		}
		if err := refs.Put([]byte(name), newID[:]); err != nil {
			return err
		}
		return appendReflog(tx, name, ReflogEntry{Old: current, New: newID, Message: reflogMessage})
	})
	if err != nil {
		return core.NewOpError("UpdateRef", name, core.ErrIllegalState, err)
	}
	return nil
}

func appendReflog(tx *bolt.Tx, name string, entry ReflogEntry) error {
	bucket, err := tx.Bucket(reflogBucket).CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return err
	}
	seq, err := bucket.NextSequence()
	if err != nil {
		return err
	}
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	payload := encodeReflogEntry(entry)
	return bucket.Put(key[:], payload)
}

func encodeReflogEntry(e ReflogEntry) []byte {
	buf := make([]byte, 0, 2*core.Size+4+len(e.Message))
	buf = append(buf, e.Old[:]...)
	buf = append(buf, e.New[:]...)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(e.Message)))
	buf = append(buf, n[:]...)
	buf = append(buf, e.Message...)
	return buf
}

func decodeReflogEntry(data []byte) (ReflogEntry, error) {
	var e ReflogEntry
	if len(data) < 2*core.Size+4 {
		return e, fmt.Errorf("truncated reflog entry")
	}
	copy(e.Old[:], data[:core.Size])
	copy(e.New[:], data[core.Size:2*core.Size])
	off := 2 * core.Size
	n := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	e.Message = string(data[off : off+int(n)])
	return e, nil
}

func (s *BoltStore) ResolveRef(_ context.Context, name string) (core.ObjectID, bool, error) {
	var id core.ObjectID
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(refsBucket).Get([]byte(name))
		if v == nil {
			return nil
		}
		copy(id[:], v)
		ok = true
		return nil
	})
	if err != nil {
		return core.Zero, false, core.NewOpError("ResolveRef", name, core.ErrIO, err)
	}
	return id, ok, nil
}

func (s *BoltStore) ReflogEntries(_ context.Context, name string) ([]ReflogEntry, error) {
	var out []ReflogEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		parent := tx.Bucket(reflogBucket)
		bucket := parent.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			entry, err := decodeReflogEntry(v)
			if err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	if err != nil {
		return nil, core.NewOpError("ReflogEntries", name, core.ErrIO, err)
	}
	return out, nil
}

func (s *BoltStore) InitBranchHead(ctx context.Context, name string, commitID core.ObjectID, shortMessage string) error {
	return s.UpdateRef(ctx, name, commitID, core.Zero, false, "commit (initial): "+shortMessage)
}

func (s *BoltStore) CommitBranchHead(ctx context.Context, name string, expectedOld core.ObjectID, commitID core.ObjectID, shortMessage string) error {
	return s.UpdateRef(ctx, name, commitID, expectedOld, false, "commit: "+shortMessage)
}

func (s *BoltStore) AmendBranchHead(ctx context.Context, name string, commitID core.ObjectID, shortMessage string) error {
	return s.UpdateRef(ctx, name, commitID, core.Zero, true, "commit (amend): "+shortMessage)
}

func (s *BoltStore) ResetBranchHead(ctx context.Context, name string, commitID core.ObjectID) error {
	return s.UpdateRef(ctx, name, commitID, core.Zero, true, "updating HEAD")
}

// Attribute stats the filesystem backing the bbolt file via
// golang.org/x/sys/unix.Statfs, promoting the teacher's transitive
// golang.org/x/sys dependency to direct use.
func (s *BoltStore) Attribute(name string) (uint64, error) {
	switch name {
	case "totalSpace", "usableSpace", "unallocatedSpace":
	default:
		return 0, core.NewOpError("Attribute", name, core.ErrUnsupported, nil)
	}

	var statfs unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(s.path), &statfs); err != nil {
		return 0, core.NewOpError("Attribute", name, core.ErrIO, err)
	}
	blockSize := uint64(statfs.Bsize)
	switch name {
	case "totalSpace":
		return blockSize * statfs.Blocks, nil
	case "usableSpace":
		return blockSize * statfs.Bavail, nil
	default: // unallocatedSpace
		return blockSize * statfs.Bfree, nil
	}
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return core.NewOpError("Close", s.path, core.ErrIO, err)
	}
	return nil
}
