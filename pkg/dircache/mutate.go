package dircache

// Builder applies a batch of staged insertions to a cache, following
// spec.md §4.3's flushInsertions: existing entries are preserved, and
// each staged path either adds a new entry or replaces the entry
// already there (an overwrite, as happens when a memory channel is
// later flushed back into the cache at the same path).
type Builder struct {
	cache      *Cache
	insertions map[string]Entry
}

// NewBuilder returns a builder over cache that will apply insertions.
func NewBuilder(cache *Cache, insertions map[string]Entry) *Builder {
	return &Builder{cache: cache, insertions: insertions}
}

// Apply merges the staged insertions into the cache and re-sorts it.
func (b *Builder) Apply() {
	if len(b.insertions) == 0 {
		return
	}
	existing := make(map[string]int, len(b.cache.entries))
	for i, e := range b.cache.entries {
		existing[e.Path] = i
	}
	for path, e := range b.insertions {
		e.Path = path
		if i, ok := existing[path]; ok {
			b.cache.entries[i] = e
			continue
		}
		b.cache.entries = append(b.cache.entries, e)
	}
	b.cache.sort()
}

// Editor applies a batch of staged deletions to a cache, following
// spec.md §4.3's flushDeletions.
type Editor struct {
	cache     *Cache
	deletions map[string]struct{}
}

// NewEditor returns an editor over cache that will apply deletions.
func NewEditor(cache *Cache, deletions map[string]struct{}) *Editor {
	return &Editor{cache: cache, deletions: deletions}
}

// Apply removes every staged path from the cache.
func (e *Editor) Apply() {
	if len(e.deletions) == 0 {
		return
	}
	kept := e.cache.entries[:0]
	for _, entry := range e.cache.entries {
		if _, gone := e.deletions[entry.Path]; !gone {
			kept = append(kept, entry)
		}
	}
	e.cache.entries = kept
}
