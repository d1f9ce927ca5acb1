package markdown

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NodeID identifies a node across successive trees. Zero means unassigned.
// IDs are handed out by the diff updater when a tree becomes current.
type NodeID uint64

// Node is one element of the document tree.
//
// Start and End delimit the node's source bytes. Block ranges are whole
// lines. Inline nodes that have no source text of their own (typographer
// substitutions, task checkboxes) are zero-width.
type Node struct {
	Kind  Kind
	Start int
	End   int

	// Level is the heading level, emphasis strength, ordered list start or
	// footnote index, depending on Kind.
	Level int

	// Attr is a kind-specific attribute: heading anchor, code language,
	// link destination, list marker or cell alignment.
	Attr string

	// Literal is the text of leaves (text, code, HTML, front matter) and the
	// title of links and images.
	Literal string

	Children []*Node

	// ID is assigned once by the diff updater and never changed afterwards.
	ID NodeID

	hash uint64
}

// Hash returns the content hash of the subtree. It covers kind, level,
// attribute, literal and children, but not positions or IDs, so identical
// content at a different offset hashes the same.
func (n *Node) Hash() uint64 {
	return n.hash
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Len returns the length of the node's source range.
func (n *Node) Len() int {
	return n.End - n.Start
}

// Text returns the concatenated literal text of the subtree.
func (n *Node) Text() string {
	var sb strings.Builder
	n.appendText(&sb)
	return sb.String()
}

func (n *Node) appendText(sb *strings.Builder) {
	switch n.Kind {
	case KindLink, KindImage, KindFrontMatter, KindError:
		// Literal holds a title or raw data, not display text.
	default:
		sb.WriteString(n.Literal)
	}
	if n.Kind == KindText && n.Attr != "" {
		sb.WriteByte(' ')
	}
	for _, c := range n.Children {
		c.appendText(sb)
	}
}

// Clone returns a deep copy of the subtree, IDs included.
func (n *Node) Clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// shifted returns a deep copy moved by delta bytes with IDs cleared.
func (n *Node) shifted(delta int) *Node {
	c := *n
	c.Start += delta
	c.End += delta
	c.ID = 0
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.shifted(delta)
		}
	}
	return &c
}

// Seal computes the content hashes of a subtree built outside the parser,
// such as one decoded from a patch log.
func (n *Node) Seal() {
	n.seal()
}

// seal computes the content hashes of the subtree bottom-up.
func (n *Node) seal() {
	for _, c := range n.Children {
		c.seal()
	}
	n.rehash()
}

// rehash recomputes the node's hash from its fields and its children's
// hashes, which must already be current.
func (n *Node) rehash() {
	var buf [binary.MaxVarintLen64]byte
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(n.Kind)})
	_, _ = d.Write(buf[:binary.PutVarint(buf[:], int64(n.Level))])
	_, _ = d.WriteString(n.Attr)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(n.Literal)
	_, _ = d.Write([]byte{0})
	for _, c := range n.Children {
		binary.LittleEndian.PutUint64(buf[:8], c.hash)
		_, _ = d.Write(buf[:8])
	}
	n.hash = d.Sum64()
}

// Walk visits the subtree in document order. Returning false from fn skips
// the node's children.
func Walk(n *Node, fn func(n *Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}
