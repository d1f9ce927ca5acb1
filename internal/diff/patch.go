package diff

import (
	"fmt"
	"strings"

	"github.com/dshills/marksync/internal/markdown"
)

// OpKind is the type of a patch operation.
type OpKind uint8

const (
	// OpInsert inserts Node under Parent at Index.
	OpInsert OpKind = iota + 1
	// OpRemove removes Target and its subtree.
	OpRemove
	// OpReplace replaces Target with Node. A zero Target replaces the root.
	OpReplace
	// OpMove moves Target to Index among the children of Parent.
	OpMove
)

var opKindNames = map[OpKind]string{
	OpInsert:  "insert",
	OpRemove:  "remove",
	OpReplace: "replace",
	OpMove:    "move",
}

// String returns the operation name.
func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseOpKind returns the operation with the given name.
func ParseOpKind(name string) (OpKind, bool) {
	for k, n := range opKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Op is one patch operation. Path is the child index path of the affected
// node: in the new tree for inserts, replaces and moves, in the old tree
// for removes.
type Op struct {
	Kind   OpKind
	Path   []int
	Parent markdown.NodeID
	Index  int
	Target markdown.NodeID
	Node   *markdown.Node
}

// String returns a compact description of the operation.
func (op Op) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %v", op.Kind, op.Path)
	switch op.Kind {
	case OpInsert:
		fmt.Fprintf(&sb, " %v#%d under %d at %d", op.Node.Kind, op.Node.ID, op.Parent, op.Index)
	case OpRemove:
		fmt.Fprintf(&sb, " #%d", op.Target)
	case OpReplace:
		fmt.Fprintf(&sb, " #%d with %v#%d", op.Target, op.Node.Kind, op.Node.ID)
	case OpMove:
		fmt.Fprintf(&sb, " #%d under %d to %d", op.Target, op.Parent, op.Index)
	}
	return sb.String()
}

// Patch is the ordered list of operations produced by one diff.
type Patch struct {
	// Seq numbers patches in the order they were produced.
	Seq uint64

	Ops []Op

	// Fallbacks counts child lists replaced because alignment failed.
	Fallbacks int
}

// Empty reports whether the patch changes nothing.
func (p *Patch) Empty() bool {
	return len(p.Ops) == 0
}

// Count returns the number of operations of the given kind.
func (p *Patch) Count(kind OpKind) int {
	n := 0
	for _, op := range p.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
