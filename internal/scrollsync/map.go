package scrollsync

import (
	"sort"

	"github.com/dshills/marksync/internal/markdown"
)

// Range is a byte range [Start, End) of the buffer.
type Range struct {
	Start int
	End   int
}

// Contains reports whether offset lies in the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

type entry struct {
	Range
	id markdown.NodeID
}

// Map is an immutable position index for one rendered tree.
type Map struct {
	leaves []entry
	byID   map[markdown.NodeID]Range
	len    int
}

// NewMap indexes the leaves of tree. Zero-width leaves are not addressable
// by offset but remain resolvable by ID, as do all blocks.
func NewMap(tree *markdown.Tree) *Map {
	m := &Map{byID: make(map[markdown.NodeID]Range)}
	if tree == nil || tree.Root == nil {
		return m
	}
	m.len = tree.Len
	markdown.Walk(tree.Root, func(n *markdown.Node, _ int) bool {
		if n.ID != 0 && n != tree.Root {
			m.byID[n.ID] = Range{Start: n.Start, End: n.End}
		}
		return true
	})
	for _, n := range tree.Leaves() {
		if n.End > n.Start {
			m.leaves = append(m.leaves, entry{Range{n.Start, n.End}, n.ID})
		}
	}
	sort.SliceStable(m.leaves, func(i, j int) bool {
		return m.leaves[i].Start < m.leaves[j].Start
	})
	return m
}

// Len returns the length of the text the map was built for.
func (m *Map) Len() int {
	return m.len
}

// Leaves returns the number of addressable leaves.
func (m *Map) Leaves() int {
	return len(m.leaves)
}

// Lookup returns the leaf at offset. An offset between leaves resolves to
// the next leaf, or the last one at the end of the document. Offsets
// outside [0, Len] are clamped and reported as stale.
func (m *Map) Lookup(offset int) (markdown.NodeID, Range, error) {
	if len(m.leaves) == 0 {
		return 0, Range{}, ErrEmptyMap
	}
	var stale error
	if offset < 0 || offset > m.len {
		stale = &StaleReferenceError{Offset: offset, Len: m.len}
		offset = max(0, min(offset, m.len))
	}
	i := sort.Search(len(m.leaves), func(i int) bool {
		return m.leaves[i].End > offset
	})
	if i == len(m.leaves) {
		i--
	}
	e := m.leaves[i]
	return e.id, e.Range, stale
}

// Range returns the buffer range of the node with the given ID.
func (m *Map) Range(id markdown.NodeID) (Range, bool) {
	r, ok := m.byID[id]
	return r, ok
}
