package objstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/basaltfs/gfs/pkg/core"
)

// modeByte/byteMode give FileMode a stable on-disk encoding,
// independent of the iota ordering in pkg/core so a future reordering
// there can't silently change every stored tree's hash.
func modeByte(m core.FileMode) (byte, error) {
	switch m {
	case core.RegularFile:
		return 'f', nil
	case core.ExecutableFile:
		return 'x', nil
	case core.Tree:
		return 'd', nil
	case core.Gitlink:
		return 'g', nil
	default:
		return 0, fmt.Errorf("objstore: cannot serialize mode %v", m)
	}
}

func byteMode(b byte) (core.FileMode, error) {
	switch b {
	case 'f':
		return core.RegularFile, nil
	case 'x':
		return core.ExecutableFile, nil
	case 'd':
		return core.Tree, nil
	case 'g':
		return core.Gitlink, nil
	default:
		return core.Missing, fmt.Errorf("objstore: unknown mode byte %q", b)
	}
}

// encodeTree serializes a name-sorted tree listing into canonical
// bytes: identical entry sets always produce identical bytes, and
// therefore (via hashObject) an identical id.
func encodeTree(entries map[string]TreeEntry) ([]byte, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		e := entries[name]
		mb, err := modeByte(e.Mode)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(mb)
		buf.Write(e.ID[:])
		var nameLen [4]byte
		binary.BigEndian.PutUint32(nameLen[:], uint32(len(name)))
		buf.Write(nameLen[:])
		buf.WriteString(name)
	}
	return buf.Bytes(), nil
}

func decodeTree(data []byte) (map[string]TreeEntry, error) {
	entries := make(map[string]TreeEntry)
	for len(data) > 0 {
		if len(data) < 1+core.Size+4 {
			return nil, fmt.Errorf("objstore: truncated tree record")
		}
		mode, err := byteMode(data[0])
		if err != nil {
			return nil, err
		}
		var id core.ObjectID
		copy(id[:], data[1:1+core.Size])
		off := 1 + core.Size
		nameLen := binary.BigEndian.Uint32(data[off : off+4])
		off += 4
		if uint32(len(data)-off) < nameLen {
			return nil, fmt.Errorf("objstore: truncated tree name")
		}
		name := string(data[off : off+int(nameLen)])
		off += int(nameLen)
		entries[name] = TreeEntry{Mode: mode, ID: id}
		data = data[off:]
	}
	return entries, nil
}

// Commit is the object-store's commit object: a tree plus identities,
// message, and parents.
type Commit struct {
	Tree      core.ObjectID
	Parents   []core.ObjectID
	Author    Identity
	Committer Identity
	Message   string
}

// Identity names a commit's author or committer.
type Identity struct {
	Name  string
	Email string
	When  time.Time
}

func encodeCommit(c Commit) []byte {
	var buf bytes.Buffer
	buf.Write(c.Tree[:])
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(c.Parents)))
	buf.Write(n[:])
	for _, p := range c.Parents {
		buf.Write(p[:])
	}
	writeIdentity(&buf, c.Author)
	writeIdentity(&buf, c.Committer)
	writeString(&buf, c.Message)
	return buf.Bytes()
}

func writeIdentity(buf *bytes.Buffer, id Identity) {
	writeString(buf, id.Name)
	writeString(buf, id.Email)
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], uint64(id.When.UTC().UnixNano()))
	buf.Write(t[:])
}

func writeString(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func decodeCommit(data []byte) (Commit, error) {
	var c Commit
	if len(data) < core.Size+4 {
		return c, fmt.Errorf("objstore: truncated commit")
	}
	copy(c.Tree[:], data[:core.Size])
	off := core.Size
	count := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	for i := uint32(0); i < count; i++ {
		if len(data)-off < core.Size {
			return c, fmt.Errorf("objstore: truncated commit parents")
		}
		var p core.ObjectID
		copy(p[:], data[off:off+core.Size])
		c.Parents = append(c.Parents, p)
		off += core.Size
	}
	var err error
	c.Author, off, err = readIdentity(data, off)
	if err != nil {
		return c, err
	}
	c.Committer, off, err = readIdentity(data, off)
	if err != nil {
		return c, err
	}
	c.Message, _, err = readString(data, off)
	return c, err
}

func readIdentity(data []byte, off int) (Identity, int, error) {
	var id Identity
	var err error
	id.Name, off, err = readString(data, off)
	if err != nil {
		return id, off, err
	}
	id.Email, off, err = readString(data, off)
	if err != nil {
		return id, off, err
	}
	if len(data)-off < 8 {
		return id, off, fmt.Errorf("objstore: truncated identity timestamp")
	}
	nanos := binary.BigEndian.Uint64(data[off : off+8])
	id.When = time.Unix(0, int64(nanos)).UTC()
	off += 8
	return id, off, nil
}

func readString(data []byte, off int) (string, int, error) {
	if len(data)-off < 4 {
		return "", off, fmt.Errorf("objstore: truncated string length")
	}
	n := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if uint32(len(data)-off) < n {
		return "", off, fmt.Errorf("objstore: truncated string data")
	}
	s := string(data[off : off+int(n)])
	off += int(n)
	return s, off, nil
}
