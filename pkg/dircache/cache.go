// Package dircache provides the flat sorted index over a base tree
// that the staging engine edits in memory before writing a new tree.
package dircache

import (
	"context"
	"sort"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/objstore"
)

// Entry is one file or directory entry in the cache.
type Entry struct {
	Path string
	Mode core.FileMode
	ID   core.ObjectID
}

// Cache is a sorted array of entries standing in for the base tree
// during editing. Every method is a plain read or rebuild of the
// slice — locking is the caller's (the staging engine's) job.
type Cache struct {
	entries []Entry // sorted by Path
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// ForTree walks treeID recursively and builds a cache from its full
// listing.
func ForTree(ctx context.Context, store objstore.Store, treeID core.ObjectID) (*Cache, error) {
	c := New()
	if treeID.IsZero() {
		return c, nil
	}
	if err := c.loadTree(ctx, store, "", treeID); err != nil {
		return nil, err
	}
	c.sort()
	return c, nil
}

func (c *Cache) loadTree(ctx context.Context, store objstore.Store, prefix string, treeID core.ObjectID) error {
	children, err := store.ListTree(ctx, treeID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := children[name]
		path := core.Join(prefix, name)
		if child.Mode == core.Tree {
			if err := c.loadTree(ctx, store, path, child.ID); err != nil {
				return err
			}
		} else {
			c.entries = append(c.entries, Entry{Path: path, Mode: child.Mode, ID: child.ID})
		}
	}
	return nil
}

func (c *Cache) sort() {
	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].Path < c.entries[j].Path })
}

func (c *Cache) search(path string) int {
	return sort.Search(len(c.entries), func(i int) bool { return c.entries[i].Path >= path })
}

// Lookup returns the entry at path, if any.
func (c *Cache) Lookup(path string) (Entry, bool) {
	i := c.search(path)
	if i < len(c.entries) && c.entries[i].Path == path {
		return c.entries[i], true
	}
	return Entry{}, false
}

// FileExists reports whether path names a file entry (regular or
// executable) in the cache.
func (c *Cache) FileExists(path string) bool {
	e, ok := c.Lookup(path)
	return ok && e.Mode.IsFile()
}

// IsNonTrivialDirectory reports whether at least one entry's path
// strictly starts with path + "/".
func (c *Cache) IsNonTrivialDirectory(path string) bool {
	i := c.search(path + "/")
	return i < len(c.entries) && core.IsStrictDescendant(c.entries[i].Path, path)
}

// EntriesWithin returns every entry whose path lies strictly within
// prefix, in sorted order. prefix == "" returns every entry.
func (c *Cache) EntriesWithin(prefix string) []Entry {
	if prefix == "" {
		out := make([]Entry, len(c.entries))
		copy(out, c.entries)
		return out
	}
	start := c.search(prefix + "/")
	var out []Entry
	for i := start; i < len(c.entries); i++ {
		if !core.IsStrictDescendant(c.entries[i].Path, prefix) {
			break
		}
		out = append(out, c.entries[i])
	}
	return out
}

// Clear empties the cache in place.
func (c *Cache) Clear() {
	c.entries = nil
}

// DeleteDirectory removes every entry strictly within prefix.
func (c *Cache) DeleteDirectory(prefix string) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !core.IsStrictDescendant(e.Path, prefix) {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

// Len returns the number of entries (for tests/diagnostics).
func (c *Cache) Len() int { return len(c.entries) }

// Entries returns a copy of every entry, in sorted order.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
