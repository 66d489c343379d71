package merge

import (
	"bytes"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// region is one contiguous base-relative change: base[baseStart:baseEnd]
// was replaced by other[otherStart:otherEnd] on one side. Adjacent
// non-equal opcodes from the same diff are coalesced into a single
// region so an insertion sitting right next to a replace reads as one
// change block, matching how a human would describe the edit.
type region struct {
	baseStart, baseEnd   int
	otherStart, otherEnd int
}

func changeRegions(ops []difflib.OpCode) []region {
	var out []region
	for _, op := range ops {
		if op.Tag == 'e' {
			continue
		}
		r := region{op.I1, op.I2, op.J1, op.J2}
		if n := len(out); n > 0 && out[n-1].baseEnd == r.baseStart {
			out[n-1].baseEnd = r.baseEnd
			out[n-1].otherEnd = r.otherEnd
			continue
		}
		out = append(out, r)
	}
	return out
}

// project renders side's view of base[p:q): base text outside side's
// own change regions, side's own text inside them.
func project(base, other []string, regions []region, p, q int) []string {
	var out []string
	pos := p
	for _, r := range regions {
		if r.baseStart < p || r.baseEnd > q {
			continue
		}
		out = append(out, base[pos:r.baseStart]...)
		out = append(out, other[r.otherStart:r.otherEnd]...)
		pos = r.baseEnd
	}
	out = append(out, base[pos:q]...)
	return out
}

type interval struct{ start, end int }

// clusters merges two sorted, non-overlapping region lists into
// maximal runs of base indices touched by either side, so a change on
// one side overlapping a change on the other side is resolved as a
// single hunk instead of two. Changes that merely touch end to end
// stay separate hunks, except that a pure insertion at the edge of a
// change joins that change's hunk.
func clusters(ourRegions, theirRegions []region) []interval {
	var ivs []interval
	for _, r := range ourRegions {
		ivs = append(ivs, interval{r.baseStart, r.baseEnd})
	}
	for _, r := range theirRegions {
		ivs = append(ivs, interval{r.baseStart, r.baseEnd})
	}
	if len(ivs) == 0 {
		return nil
	}
	for i := 1; i < len(ivs); i++ {
		for j := i; j > 0 && ivs[j-1].start > ivs[j].start; j-- {
			ivs[j-1], ivs[j] = ivs[j], ivs[j-1]
		}
	}
	merged := []interval{ivs[0]}
	for _, iv := range ivs[1:] {
		last := &merged[len(merged)-1]
		if iv.start < last.end || (iv.start == last.end && (iv.start == iv.end || last.start == last.end)) {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// mergeLines performs a line-based three-way merge of base/ours/theirs
// using two independent two-way diffs (base->ours and base->theirs), in
// the spirit of the teacher's MergeAlgorithm.merge but against
// go-difflib's SequenceMatcher instead of JGit's. Unchanged regions on
// both sides pass through verbatim; a region changed on exactly one
// side takes that side's text; a region changed identically on both
// sides takes either; a region changed differently on both sides
// becomes a conflict hunk wrapped in the given markers.
func mergeLines(base, ours, theirs []string, markers []string) (merged []string, conflicted bool) {
	ourRegions := changeRegions(difflib.NewMatcher(base, ours).GetOpCodes())
	theirRegions := changeRegions(difflib.NewMatcher(base, theirs).GetOpCodes())

	hunks := clusters(ourRegions, theirRegions)
	pos := 0
	for _, h := range hunks {
		if h.start > pos {
			merged = append(merged, base[pos:h.start]...)
		}
		ourText := project(base, ours, ourRegions, h.start, h.end)
		theirText := project(base, theirs, theirRegions, h.start, h.end)
		switch {
		case linesEqual(ourText, theirText):
			merged = append(merged, ourText...)
		case linesEqual(ourText, base[h.start:h.end]):
			merged = append(merged, theirText...)
		case linesEqual(theirText, base[h.start:h.end]):
			merged = append(merged, ourText...)
		default:
			conflicted = true
			merged = append(merged, formatConflict(ourText, base[h.start:h.end], theirText, markers)...)
		}
		pos = h.end
	}
	if pos < len(base) {
		merged = append(merged, base[pos:]...)
	}
	return merged, conflicted
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// formatConflict renders one conflict hunk using git-style markers,
// labeled with markers[0]/[1]/[2] (base/ours/theirs), matching
// GfsMerger's default ["BASE", "OURS", "THEIRS"].
func formatConflict(ours, base, theirs []string, markers []string) []string {
	var out []string
	out = append(out, "<<<<<<< "+markers[1])
	out = append(out, ours...)
	out = append(out, "||||||| "+markers[0])
	out = append(out, base...)
	out = append(out, "=======")
	out = append(out, theirs...)
	out = append(out, ">>>>>>> "+markers[2])
	return out
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func joinLines(lines []string) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
