package markdown

import "sort"

// Tree is the parsed form of one version of the document. A tree is not
// modified after parsing except for node IDs, which the diff updater
// assigns once when the tree becomes current.
type Tree struct {
	// Root is the KindDocument node.
	Root *Node

	// Errors lists the parse errors of the document in source order.
	Errors []ParseError

	// Meta holds the decoded front matter, if any.
	Meta map[string]any

	// Len is the length of the parsed text.
	Len int

	// Reparsed and Reused count the sections parsed afresh and the sections
	// carried over from the prior tree.
	Reparsed int
	Reused   int

	sections []section
	key      string
	single   bool // parsed as one section because of definitions
}

// section is a run of source parsed on its own.
type section struct {
	start int
	end   int
	nodes []*Node
	errs  []ParseError
	meta  map[string]any

	frontMatter bool
}

func (s section) shifted(delta int) section {
	out := section{start: s.start + delta, end: s.end + delta, meta: s.meta, frontMatter: s.frontMatter}
	out.nodes = make([]*Node, len(s.nodes))
	for i, n := range s.nodes {
		out.nodes[i] = n.shifted(delta)
	}
	if len(s.errs) > 0 {
		out.errs = make([]ParseError, len(s.errs))
		for i, e := range s.errs {
			out.errs[i] = e.shifted(delta)
		}
	}
	return out
}

// SectionCount returns the number of independently parsed sections.
func (t *Tree) SectionCount() int {
	return len(t.sections)
}

// SectionStarts returns the start offsets of the sections.
func (t *Tree) SectionStarts() []int {
	starts := make([]int, len(t.sections))
	for i, s := range t.sections {
		starts[i] = s.start
	}
	return starts
}

// Leaves returns the leaf nodes in document order.
func (t *Tree) Leaves() []*Node {
	var leaves []*Node
	Walk(t.Root, func(n *Node, _ int) bool {
		if n.IsLeaf() && n != t.Root {
			leaves = append(leaves, n)
		}
		return true
	})
	return leaves
}

// Count returns the number of nodes in the tree.
func (t *Tree) Count() int {
	count := 0
	Walk(t.Root, func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// sectionAt returns the index of the section containing offset.
func sectionAt(sections []section, offset int) int {
	i := sort.Search(len(sections), func(i int) bool {
		return sections[i].start > offset
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// sectionStarting returns the index of the section starting exactly at
// offset, or -1.
func sectionStarting(sections []section, offset int) int {
	i := sort.Search(len(sections), func(i int) bool {
		return sections[i].start >= offset
	})
	if i < len(sections) && sections[i].start == offset {
		return i
	}
	return -1
}

// assemble builds a tree from its sections.
func assemble(sections []section, length int, key string) *Tree {
	t := &Tree{Len: length, key: key, sections: sections}
	root := &Node{Kind: KindDocument, End: length}
	for _, s := range sections {
		root.Children = append(root.Children, s.nodes...)
		t.Errors = append(t.Errors, s.errs...)
		if s.meta != nil {
			t.Meta = s.meta
		}
	}
	t.Root = root
	return t
}
