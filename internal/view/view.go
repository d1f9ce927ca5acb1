package view

import (
	"sync"

	"github.com/dshills/marksync/internal/diff"
	"github.com/dshills/marksync/internal/markdown"
)

// Node is a rendered node.
type Node struct {
	ID       markdown.NodeID
	Kind     markdown.Kind
	Level    int
	Attr     string
	Literal  string
	Hash     uint64
	Children []*Node

	parent *Node
}

// Parent returns the node's parent, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Result reports what applying a patch did.
type Result struct {
	Applied int
	Skipped int
}

// View is the rendered document. It is safe for concurrent use.
type View struct {
	mu    sync.RWMutex
	root  *Node
	index map[markdown.NodeID]*Node
	seq   uint64
}

// New creates an empty view.
func New() *View {
	return &View{index: make(map[markdown.NodeID]*Node)}
}

// Apply applies a patch. Operations already reflected in the view and
// operations that refer to unknown nodes are skipped.
func (v *View) Apply(p *diff.Patch) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	var res Result
	for _, op := range p.Ops {
		if v.applyLocked(op) {
			res.Applied++
		} else {
			res.Skipped++
		}
	}
	if p.Seq > v.seq {
		v.seq = p.Seq
	}
	return res
}

func (v *View) applyLocked(op diff.Op) bool {
	switch op.Kind {
	case diff.OpInsert:
		return v.insertLocked(op)
	case diff.OpRemove:
		return v.removeLocked(op)
	case diff.OpReplace:
		return v.replaceLocked(op)
	case diff.OpMove:
		return v.moveLocked(op)
	}
	return false
}

func (v *View) insertLocked(op diff.Op) bool {
	if op.Node == nil {
		return false
	}
	if _, exists := v.index[op.Node.ID]; exists {
		return false
	}
	parent, ok := v.index[op.Parent]
	if !ok {
		return false
	}
	n := v.build(op.Node, parent)
	parent.Children = insertChild(parent.Children, op.Index, n)
	return true
}

func (v *View) removeLocked(op diff.Op) bool {
	n, ok := v.index[op.Target]
	if !ok || n.parent == nil {
		return false
	}
	n.parent.Children = removeChild(n.parent.Children, n)
	v.unindex(n)
	return true
}

func (v *View) replaceLocked(op diff.Op) bool {
	if op.Node == nil {
		return false
	}
	if op.Target == 0 {
		if v.root != nil && v.root.ID == op.Node.ID && v.root.Hash == op.Node.Hash() {
			return false
		}
		v.index = make(map[markdown.NodeID]*Node)
		v.root = v.build(op.Node, nil)
		return true
	}

	old, ok := v.index[op.Target]
	if !ok {
		return false
	}
	if old.ID == op.Node.ID && old.Hash == op.Node.Hash() {
		return false
	}
	parent := old.parent
	v.unindex(old)
	n := v.build(op.Node, parent)
	if parent == nil {
		v.root = n
		return true
	}
	for i, c := range parent.Children {
		if c == old {
			parent.Children[i] = n
			break
		}
	}
	return true
}

func (v *View) moveLocked(op diff.Op) bool {
	n, ok := v.index[op.Target]
	if !ok || n.parent == nil {
		return false
	}
	parent, ok := v.index[op.Parent]
	if !ok {
		return false
	}
	if n.parent == parent && op.Index < len(parent.Children) && parent.Children[op.Index] == n {
		return false
	}
	n.parent.Children = removeChild(n.parent.Children, n)
	n.parent = parent
	parent.Children = insertChild(parent.Children, op.Index, n)
	return true
}

// build copies a tree node into the view and indexes it.
func (v *View) build(src *markdown.Node, parent *Node) *Node {
	n := &Node{
		ID:      src.ID,
		Kind:    src.Kind,
		Level:   src.Level,
		Attr:    src.Attr,
		Literal: src.Literal,
		Hash:    src.Hash(),
		parent:  parent,
	}
	if len(src.Children) > 0 {
		n.Children = make([]*Node, len(src.Children))
		for i, c := range src.Children {
			n.Children[i] = v.build(c, n)
		}
	}
	v.index[n.ID] = n
	return n
}

func (v *View) unindex(n *Node) {
	// A replacement may reuse IDs, so only drop entries that still point
	// at this node.
	if v.index[n.ID] == n {
		delete(v.index, n.ID)
	}
	for _, c := range n.Children {
		v.unindex(c)
	}
}

func insertChild(children []*Node, i int, n *Node) []*Node {
	if i < 0 {
		i = 0
	}
	if i > len(children) {
		i = len(children)
	}
	children = append(children, nil)
	copy(children[i+1:], children[i:])
	children[i] = n
	return children
}

func removeChild(children []*Node, n *Node) []*Node {
	for i, c := range children {
		if c == n {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

// Root returns the root of the view, or nil before the first patch.
// The returned nodes must not be modified.
func (v *View) Root() *Node {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

// Lookup returns the node with the given ID.
func (v *View) Lookup(id markdown.NodeID) (*Node, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n, ok := v.index[id]
	return n, ok
}

// Len returns the number of nodes in the view.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.index)
}

// Seq returns the sequence number of the latest applied patch.
func (v *View) Seq() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.seq
}

// Matches reports whether the view mirrors the tree rooted at root, node
// IDs included.
func (v *View) Matches(root *markdown.Node) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return matches(v.root, root)
}

func matches(n *Node, m *markdown.Node) bool {
	if n == nil || m == nil {
		return n == nil && m == nil
	}
	if n.ID != m.ID || n.Kind != m.Kind || n.Level != m.Level || n.Attr != m.Attr || n.Literal != m.Literal {
		return false
	}
	if len(n.Children) != len(m.Children) {
		return false
	}
	for i := range n.Children {
		if !matches(n.Children[i], m.Children[i]) {
			return false
		}
	}
	return true
}
