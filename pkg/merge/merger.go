// Package merge is the three-way merge engine: given a common ancestor
// tree and two descendants, it walks all three in lockstep and
// resolves a target filesystem (rooted at "ours") onto the result,
// recording any path it could not resolve automatically. Transliterated
// from GfsMerger/ThreeWayWalker with JGit's ThreeWayMerger replaced by
// a from-scratch tree walk and go-difflib standing in for JGit's
// MergeAlgorithm.
package merge

import (
	"context"
	"sort"

	"github.com/basaltfs/gfs/pkg/core"
	"github.com/basaltfs/gfs/pkg/dircache"
	"github.com/basaltfs/gfs/pkg/gfs"
	"github.com/basaltfs/gfs/pkg/objstore"
)

// Conflict records one path the merge could not resolve on its own,
// mirroring GfsMergeConflict's three-sided view.
type Conflict struct {
	Path      string
	BaseMode  core.FileMode
	BaseID    core.ObjectID
	OurMode   core.FileMode
	OurID     core.ObjectID
	TheirMode core.FileMode
	TheirID   core.ObjectID
}

// Options configures a merge. A zero Options uses the default
// conflict markers.
type Options struct {
	// ConflictMarkers labels a conflict hunk's three sides, in
	// base/ours/theirs order. Defaults to ["BASE", "OURS", "THEIRS"].
	ConflictMarkers []string
}

func (o Options) markers() []string {
	if len(o.ConflictMarkers) == 3 {
		return o.ConflictMarkers
	}
	return []string{"BASE", "OURS", "THEIRS"}
}

// Merger runs three-way merges against a target filesystem rooted at
// "ours" (spec.md §4.4, SPEC_FULL.md §9).
type Merger struct {
	target  *gfs.Filesystem
	markers []string
}

// NewMerger returns a Merger that resolves onto target.
func NewMerger(target *gfs.Filesystem, opts Options) *Merger {
	return &Merger{target: target, markers: opts.markers()}
}

// Merge walks baseTree/ourTree/theirTree. If every path resolves
// cleanly, it checks the target filesystem out onto the merged tree
// and returns that tree's id. If any path conflicts, no tree id is
// produced: the target is instead left populated with the best-effort
// merged state (conflicted files containing marker text, staged but
// not committed) so the caller can inspect or fix up the result before
// writing it out, and the conflicts are returned keyed by path.
func (mg *Merger) Merge(ctx context.Context, baseTree, ourTree, theirTree core.ObjectID) (*core.ObjectID, map[string]Conflict, error) {
	mg.target.SetState(core.StateMerging)

	m := &merger{store: mg.target.Store(), markers: mg.markers, flat: make(map[string]dircache.Entry)}
	if err := m.mergeDir(ctx, "", baseTree, ourTree, theirTree); err != nil {
		return nil, nil, err
	}

	if err := mg.target.ReplaceWorkingTree(ctx, m.flat); err != nil {
		return nil, nil, err
	}

	if len(m.conflicts) > 0 {
		mg.target.SetState(core.StateMergingConflict)
		return nil, conflictMap(m.conflicts), nil
	}

	treeID, wrote, err := mg.target.WriteAndUpdateTree(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !wrote {
		treeID = mg.target.BaseTree()
	}
	mg.target.SetState(core.StateNormal)
	return &treeID, nil, nil
}

func conflictMap(list []Conflict) map[string]Conflict {
	out := make(map[string]Conflict, len(list))
	for _, c := range list {
		out[c.Path] = c
	}
	return out
}

// merger accumulates the flat, path-keyed file set of the merge result
// as it walks, alongside any conflicts encountered. Directories are
// never recorded directly — like the dircache they feed, they are
// purely implied by their descendant files.
type merger struct {
	store     objstore.Store
	markers   []string
	flat      map[string]dircache.Entry
	conflicts []Conflict
}

func (m *merger) listOrEmpty(ctx context.Context, treeID core.ObjectID) (map[string]objstore.TreeEntry, error) {
	if treeID.IsZero() {
		return nil, nil
	}
	return m.store.ListTree(ctx, treeID)
}

// adopt records path's final resolution into the flat file set. A
// tree mode is flattened wholesale via dircache.ForTree rather than
// being entered recursively, since adopt is only used where one side
// is known to contribute its subtree unchanged by the merge.
func (m *merger) adopt(ctx context.Context, path string, mode core.FileMode, id core.ObjectID) error {
	switch mode {
	case core.Missing:
		return nil
	case core.Tree:
		sub, err := dircache.ForTree(ctx, m.store, id)
		if err != nil {
			return err
		}
		for _, e := range sub.EntriesWithin("") {
			m.flat[core.Join(path, e.Path)] = dircache.Entry{Path: core.Join(path, e.Path), Mode: e.Mode, ID: e.ID}
		}
		return nil
	default:
		m.flat[path] = dircache.Entry{Path: path, Mode: mode, ID: id}
		return nil
	}
}

func (m *merger) mergeDir(ctx context.Context, dirPath string, baseTree, ourTree, theirTree core.ObjectID) error {
	baseChildren, err := m.listOrEmpty(ctx, baseTree)
	if err != nil {
		return err
	}
	ourChildren, err := m.listOrEmpty(ctx, ourTree)
	if err != nil {
		return err
	}
	theirChildren, err := m.listOrEmpty(ctx, theirTree)
	if err != nil {
		return err
	}

	names := make(map[string]struct{}, len(baseChildren)+len(ourChildren)+len(theirChildren))
	for n := range baseChildren {
		names[n] = struct{}{}
	}
	for n := range ourChildren {
		names[n] = struct{}{}
	}
	for n := range theirChildren {
		names[n] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		path := core.Join(dirPath, name)
		base, baseOK := baseChildren[name]
		our, ourOK := ourChildren[name]
		their, theirOK := theirChildren[name]

		if err := m.mergeEntry(ctx, path, base, baseOK, our, ourOK, their, theirOK); err != nil {
			return err
		}
	}
	return nil
}

func missingMode(ok bool, e objstore.TreeEntry) (core.FileMode, core.ObjectID) {
	if !ok {
		return core.Missing, core.Zero
	}
	return e.Mode, e.ID
}

// mergeEntry applies the decision ladder of GfsMerger.mergeTreeNode to
// one name: ours-unchanged, theirs-unchanged, identical ids (with a
// possible mode-only reconciliation), both blobs (textual merge), both
// trees (descend), or a file/directory mismatch (kept as ours, flagged
// as a conflict).
func (m *merger) mergeEntry(ctx context.Context, path string, base objstore.TreeEntry, baseOK bool, our objstore.TreeEntry, ourOK bool, their objstore.TreeEntry, theirOK bool) error {
	baseMode, baseID := missingMode(baseOK, base)
	ourMode, ourID := missingMode(ourOK, our)
	theirMode, theirID := missingMode(theirOK, their)

	if baseMode == ourMode && baseID == ourID {
		return m.adopt(ctx, path, theirMode, theirID)
	}
	if baseMode == theirMode && baseID == theirID {
		return m.adopt(ctx, path, ourMode, ourID)
	}

	if ourID == theirID {
		mergedMode, ok := mergeFileModes(baseMode, ourMode, theirMode)
		if !ok {
			m.addConflict(path, baseMode, baseID, ourMode, ourID, theirMode, theirID)
			return m.adopt(ctx, path, ourMode, ourID)
		}
		return m.adopt(ctx, path, mergedMode, ourID)
	}

	if ourMode != core.Tree && theirMode != core.Tree {
		return m.mergeBlobs(ctx, path, baseMode, baseID, ourMode, ourID, theirMode, theirID)
	}

	if ourMode == core.Tree && theirMode == core.Tree {
		childBase := core.Zero
		if baseMode == core.Tree {
			childBase = baseID
		}
		return m.mergeDir(ctx, path, childBase, ourID, theirID)
	}

	// File/directory mismatch: keep ours and flag a conflict, matching
	// handleFileDirectoryConflict.
	m.addConflict(path, baseMode, baseID, ourMode, ourID, theirMode, theirID)
	return m.adopt(ctx, path, ourMode, ourID)
}

func (m *merger) mergeBlobs(ctx context.Context, path string, baseMode core.FileMode, baseID core.ObjectID, ourMode core.FileMode, ourID core.ObjectID, theirMode core.FileMode, theirID core.ObjectID) error {
	if ourMode == core.Gitlink || theirMode == core.Gitlink {
		m.addConflict(path, baseMode, baseID, ourMode, ourID, theirMode, theirID)
		return m.adopt(ctx, path, ourMode, ourID)
	}

	baseText, err := m.readLines(ctx, baseID)
	if err != nil {
		return err
	}
	ourText, err := m.readLines(ctx, ourID)
	if err != nil {
		return err
	}
	theirText, err := m.readLines(ctx, theirID)
	if err != nil {
		return err
	}

	merged, conflicted := mergeLines(baseText, ourText, theirText, m.markers)
	mode, ok := mergeFileModes(baseMode, ourMode, theirMode)
	if !ok {
		mode = core.RegularFile
	}

	id, err := m.store.InsertBlob(ctx, joinLines(merged))
	if err != nil {
		return err
	}
	if conflicted {
		m.addConflict(path, baseMode, baseID, ourMode, ourID, theirMode, theirID)
	}
	m.flat[path] = dircache.Entry{Path: path, Mode: mode, ID: id}
	return nil
}

func (m *merger) readLines(ctx context.Context, id core.ObjectID) ([]string, error) {
	if id.IsZero() {
		return nil, nil
	}
	data, err := m.store.ReadBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	return splitLines(data), nil
}

func (m *merger) addConflict(path string, baseMode core.FileMode, baseID core.ObjectID, ourMode core.FileMode, ourID core.ObjectID, theirMode core.FileMode, theirID core.ObjectID) {
	m.conflicts = append(m.conflicts, Conflict{
		Path:      path,
		BaseMode:  baseMode,
		BaseID:    baseID,
		OurMode:   ourMode,
		OurID:     ourID,
		TheirMode: theirMode,
		TheirID:   theirID,
	})
}

// mergeFileModes implements GfsMerger.mergeFileModes: if both sides
// agree, no reconciliation is needed; if exactly one side changed the
// mode from base, that side's mode wins (treating a deletion on the
// other side as "no opinion"); otherwise the modes conflict.
func mergeFileModes(baseMode, ourMode, theirMode core.FileMode) (core.FileMode, bool) {
	if ourMode == theirMode {
		return ourMode, true
	}
	if baseMode == ourMode {
		if theirMode == core.Missing {
			return ourMode, true
		}
		return theirMode, true
	}
	if baseMode == theirMode {
		if ourMode == core.Missing {
			return theirMode, true
		}
		return ourMode, true
	}
	return core.Missing, false
}
