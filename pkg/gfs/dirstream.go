package gfs

import "github.com/basaltfs/gfs/pkg/core"

// DirEntry is one entry reported by a DirStream.
type DirEntry struct {
	Name string
	Mode core.FileMode
	ID   core.ObjectID
}

// DirEntryFilter decides whether an entry should be reported by a
// DirStream. A nil filter reports every entry.
type DirEntryFilter func(DirEntry) bool

// DirStream is an open directory iterator (spec.md §3's "Open
// directory iterator"). It walks a snapshot taken at creation time, so
// edits staged after the stream opens never change what it reports.
type DirStream struct {
	fs      *Filesystem
	path    string
	filter  DirEntryFilter
	entries []DirEntry
	pos     int
	closed  bool
}

// Next advances the iterator and returns the next matching entry.
// ok is false once the stream is exhausted.
func (d *DirStream) Next() (DirEntry, bool) {
	for d.pos < len(d.entries) {
		e := d.entries[d.pos]
		d.pos++
		if d.filter == nil || d.filter(e) {
			return e, true
		}
	}
	return DirEntry{}, false
}

// Close deregisters the stream. Idempotent.
func (d *DirStream) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.fs.deregisterStream(d.path)
	return nil
}

// dirStreamRegistry tracks, per path, how many open iterators could be
// invalidated by a mutation under that path (spec.md §3 "Open directory
// iterator" / invariant I8).
type dirStreamRegistry struct {
	open map[string]int
}

func newDirStreamRegistry() *dirStreamRegistry {
	return &dirStreamRegistry{open: make(map[string]int)}
}

func (r *dirStreamRegistry) register(path string) {
	r.open[path]++
}

func (r *dirStreamRegistry) deregister(path string) {
	if r.open[path] <= 1 {
		delete(r.open, path)
		return
	}
	r.open[path]--
}

// blocksMutation reports whether path or any of its ancestors
// (including path itself) has an open iterator registered, per
// invariant I8. Checking path itself, not just strict ancestors,
// additionally guards against deleting or moving the very directory
// being iterated, which spec.md's invariant text leaves implicit.
func (r *dirStreamRegistry) blocksMutation(path string) bool {
	if r.open[path] > 0 {
		return true
	}
	blocked := false
	core.Ancestors(path, func(ancestor string) bool {
		if r.open[ancestor] > 0 {
			blocked = true
			return false
		}
		return true
	})
	return blocked
}

func (r *dirStreamRegistry) closeAll() {
	r.open = make(map[string]int)
}
