package dircache

import (
	"context"
	"fmt"

	"github.com/gammazero/toposort"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/objstore"
)

// WriteTree serializes the cache into nested tree objects and returns
// the root tree id. Every directory's children are written before the
// directory itself by topologically sorting the directory-ancestor
// DAG (child dir -> parent dir edges) with the same
// toposort.Edge/Toposort call shape the teacher used to linearize
// operation dependencies before execution.
func (c *Cache) WriteTree(ctx context.Context, store objstore.Store) (core.ObjectID, error) {
	if len(c.entries) == 0 {
		return store.InsertTree(ctx, map[string]objstore.TreeEntry{})
	}

	dirs := map[string]bool{"": true}
	for _, e := range c.entries {
		core.Ancestors(e.Path, func(ancestor string) bool {
			if dirs[ancestor] {
				return false
			}
			dirs[ancestor] = true
			return true
		})
	}

	var edges []toposort.Edge
	for dir := range dirs {
		if dir == "" {
			continue
		}
		edges = append(edges, toposort.Edge{dir, core.Parent(dir)})
	}

	var order []string
	if len(edges) == 0 {
		order = []string{""}
	} else {
		sorted, err := toposort.Toposort(edges)
		if err != nil {
			return core.Zero, fmt.Errorf("dircache: cyclic directory ancestry: %w", err)
		}
		for _, v := range sorted {
			order = append(order, v.(string))
		}
	}

	childrenByDir := make(map[string]map[string]objstore.TreeEntry, len(dirs))
	childDirsByDir := make(map[string][]string, len(dirs))
	for dir := range dirs {
		childrenByDir[dir] = make(map[string]objstore.TreeEntry)
	}
	for _, e := range c.entries {
		parent := core.Parent(e.Path)
		childrenByDir[parent][core.Name(e.Path)] = objstore.TreeEntry{Mode: e.Mode, ID: e.ID}
	}
	for dir := range dirs {
		if dir == "" {
			continue
		}
		parent := core.Parent(dir)
		childDirsByDir[parent] = append(childDirsByDir[parent], dir)
	}

	dirTreeID := make(map[string]core.ObjectID, len(dirs))
	for _, dir := range order {
		entries := childrenByDir[dir]
		for _, childDir := range childDirsByDir[dir] {
			entries[core.Name(childDir)] = objstore.TreeEntry{Mode: core.Tree, ID: dirTreeID[childDir]}
		}
		id, err := store.InsertTree(ctx, entries)
		if err != nil {
			return core.Zero, err
		}
		dirTreeID[dir] = id
	}

	return dirTreeID[""], nil
}
