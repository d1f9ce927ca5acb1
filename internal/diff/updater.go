package diff

import (
	"sync"
	"sync/atomic"

	"github.com/dshills/marksync/internal/logging"
	"github.com/dshills/marksync/internal/markdown"
)

const (
	// DefaultDivergenceThreshold is the share of unaligned children above
	// which a child list is replaced instead of aligned.
	DefaultDivergenceThreshold = 0.5

	// minDivergent is the number of children a diverging region must have
	// before the threshold applies. Small regions are always aligned.
	minDivergent = 4

	// kindWindow bounds how far ahead kind alignment looks for a partner.
	kindWindow = 8
)

// Stats holds updater counters.
type Stats struct {
	Diffs             uint64
	Ops               uint64
	AlignmentFailures uint64
	NodesAssigned     uint64
}

// Updater diffs successive trees and assigns node IDs.
// Diff calls are serialized; Stats and SetThreshold may be called from any
// goroutine.
type Updater struct {
	mu        sync.Mutex
	nextID    markdown.NodeID
	seq       uint64
	threshold atomic.Value // float64
	log       *logging.Logger

	diffs    atomic.Uint64
	ops      atomic.Uint64
	failures atomic.Uint64
	assigned atomic.Uint64
}

// Option configures an Updater.
type Option func(*Updater)

// WithDivergenceThreshold sets the alignment divergence threshold.
func WithDivergenceThreshold(t float64) Option {
	return func(u *Updater) {
		u.SetThreshold(t)
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(u *Updater) {
		u.log = l
	}
}

// NewUpdater creates an updater.
func NewUpdater(opts ...Option) *Updater {
	u := &Updater{log: logging.NullLogger}
	u.threshold.Store(DefaultDivergenceThreshold)
	for _, opt := range opts {
		opt(u)
	}
	u.log = logging.OrNull(u.log).WithComponent("diff")
	return u
}

// SetThreshold changes the divergence threshold. Values outside (0, 1] are
// ignored.
func (u *Updater) SetThreshold(t float64) {
	if t > 0 && t <= 1 {
		u.threshold.Store(t)
	}
}

// Threshold returns the divergence threshold.
func (u *Updater) Threshold() float64 {
	return u.threshold.Load().(float64)
}

// Stats returns a snapshot of the counters.
func (u *Updater) Stats() Stats {
	return Stats{
		Diffs:             u.diffs.Load(),
		Ops:               u.ops.Load(),
		AlignmentFailures: u.failures.Load(),
		NodesAssigned:     u.assigned.Load(),
	}
}

// Diff assigns IDs to next and returns the patch from prev to next. With a
// nil prev the patch is a single replace of the root. prev must be the last
// tree passed to Diff as next, or nil.
func (u *Updater) Diff(prev, next *markdown.Tree) *Patch {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.seq++
	d := &differ{u: u, threshold: u.Threshold(), patch: &Patch{Seq: u.seq}}
	if prev == nil || prev.Root == nil {
		d.fresh(next.Root)
		d.emit(Op{Kind: OpReplace, Path: []int{}, Node: next.Root})
	} else {
		d.node(prev.Root, next.Root, []int{})
	}

	u.diffs.Add(1)
	u.ops.Add(uint64(len(d.patch.Ops)))
	if d.patch.Fallbacks > 0 {
		u.failures.Add(uint64(d.patch.Fallbacks))
	}
	return d.patch
}

// differ holds the state of one Diff call.
type differ struct {
	u         *Updater
	threshold float64
	patch     *Patch
}

func (d *differ) emit(op Op) {
	d.patch.Ops = append(d.patch.Ops, op)
}

func (d *differ) newID() markdown.NodeID {
	d.u.nextID++
	d.u.assigned.Add(1)
	return d.u.nextID
}

// fresh gives every node of the subtree a new ID.
func (d *differ) fresh(n *markdown.Node) {
	markdown.Walk(n, func(n *markdown.Node, _ int) bool {
		n.ID = d.newID()
		return true
	})
}

// same copies IDs from an identical old subtree.
func (d *differ) same(old, n *markdown.Node) {
	n.ID = old.ID
	if len(old.Children) != len(n.Children) {
		for _, c := range n.Children {
			d.fresh(c)
		}
		return
	}
	for i, c := range n.Children {
		d.same(old.Children[i], c)
	}
}

// adopt copies IDs from a similar old subtree where children line up and
// assigns fresh ones elsewhere. It emits nothing.
func (d *differ) adopt(old, n *markdown.Node) {
	n.ID = old.ID
	for i, c := range n.Children {
		switch {
		case i >= len(old.Children) || old.Children[i].Kind != c.Kind:
			d.fresh(c)
		case old.Children[i].Hash() == c.Hash():
			d.same(old.Children[i], c)
		default:
			d.adopt(old.Children[i], c)
		}
	}
}

// node diffs a matched pair whose content differs. n inherits old's ID.
func (d *differ) node(old, n *markdown.Node, path []int) {
	n.ID = old.ID
	if old.Hash() == n.Hash() {
		d.same(old, n)
		return
	}
	if !sameFields(old, n) || (old.IsLeaf() && n.IsLeaf()) || old.IsLeaf() != n.IsLeaf() {
		d.adopt(old, n)
		d.emit(Op{Kind: OpReplace, Path: path, Target: old.ID, Node: n})
		return
	}
	d.children(old, n, path)
}

func sameFields(a, b *markdown.Node) bool {
	return a.Kind == b.Kind && a.Level == b.Level && a.Attr == b.Attr && a.Literal == b.Literal
}

// children aligns and reconciles the child lists of a matched pair.
func (d *differ) children(old, n *markdown.Node, path []int) {
	oc, nc := old.Children, n.Children
	pair := make([]int, len(nc)) // new index -> old index, -1 when unmatched
	for i := range pair {
		pair[i] = -1
	}
	exact := make([]bool, len(nc))
	used := make([]bool, len(oc))

	// Common prefix and suffix by hash.
	pre := 0
	for pre < len(oc) && pre < len(nc) && oc[pre].Hash() == nc[pre].Hash() {
		pair[pre], exact[pre], used[pre] = pre, true, true
		pre++
	}
	suf := 0
	for suf < len(oc)-pre && suf < len(nc)-pre && oc[len(oc)-1-suf].Hash() == nc[len(nc)-1-suf].Hash() {
		i, j := len(nc)-1-suf, len(oc)-1-suf
		pair[i], exact[i], used[j] = j, true, true
		suf++
	}
	oMid := oc[pre : len(oc)-suf]
	nMid := nc[pre : len(nc)-suf]

	// Unchanged subtrees that moved, by hash.
	byHash := make(map[uint64][]int, len(oMid))
	for j := range oMid {
		h := oMid[j].Hash()
		byHash[h] = append(byHash[h], pre+j)
	}
	for i := range nMid {
		h := nMid[i].Hash()
		if cands := byHash[h]; len(cands) > 0 {
			pair[pre+i], exact[pre+i], used[cands[0]] = cands[0], true, true
			byHash[h] = cands[1:]
		}
	}

	// Remaining children by kind, in sequence order.
	unmatchedOld, unmatchedNew := 0, 0
	for j := pre; j < len(oc)-suf; j++ {
		if !used[j] {
			unmatchedOld++
		}
	}
	for i := pre; i < len(nc)-suf; i++ {
		if pair[i] < 0 {
			unmatchedNew++
		}
	}
	kindPairs := make(map[int]int)
	cursor := pre
	for i := pre; i < len(nc)-suf; i++ {
		if pair[i] >= 0 {
			continue
		}
		for j, seen := cursor, 0; j < len(oc)-suf && seen < kindWindow; j++ {
			if used[j] {
				continue
			}
			seen++
			if oc[j].Kind == nc[i].Kind {
				kindPairs[i] = j
				cursor = j + 1
				break
			}
		}
	}

	total := unmatchedOld + unmatchedNew
	unaligned := total - 2*len(kindPairs)
	if total > minDivergent && float64(unaligned)/float64(total) > d.threshold {
		failure := &DiffAlignmentFailure{
			Parent:     old.ID,
			Kind:       old.Kind,
			Divergence: float64(unaligned) / float64(total),
			Threshold:  d.threshold,
		}
		d.patch.Fallbacks++
		d.u.log.Debug("%v", failure)
		if old.Kind != markdown.KindDocument {
			n.ID = old.ID
			for _, c := range n.Children {
				d.fresh(c)
			}
			d.emit(Op{Kind: OpReplace, Path: path, Target: old.ID, Node: n})
			return
		}
		// The document itself is never replaced: its diverged children
		// are replaced as whole subtrees instead.
		kindPairs = nil
	}
	for i, j := range kindPairs {
		pair[i] = j
		used[j] = true
	}

	d.reconcile(old, n, path, pair, exact, used)
}

// reconcile emits the operations that turn old's child list into n's and
// recurses into aligned pairs.
func (d *differ) reconcile(old, n *markdown.Node, path []int, pair []int, exact, used []bool) {
	oc, nc := old.Children, n.Children

	for j, c := range oc {
		if !used[j] {
			d.emit(Op{Kind: OpRemove, Path: childPath(path, j), Parent: old.ID, Target: c.ID})
		}
	}

	// current simulates the view's child list while operations apply.
	current := make([]markdown.NodeID, 0, len(nc))
	for j, c := range oc {
		if used[j] {
			current = append(current, c.ID)
		}
	}
	for i, c := range nc {
		if pair[i] < 0 {
			d.fresh(c)
			d.emit(Op{Kind: OpInsert, Path: childPath(path, i), Parent: old.ID, Index: i, Node: c})
			current = insertAt(current, i, c.ID)
			continue
		}
		id := oc[pair[i]].ID
		if pos := indexFrom(current, i, id); pos != i {
			d.emit(Op{Kind: OpMove, Path: childPath(path, i), Parent: old.ID, Index: i, Target: id})
			current = insertAt(removeAt(current, pos), i, id)
		}
	}

	for i, c := range nc {
		switch {
		case pair[i] < 0:
		case exact[i]:
			d.same(oc[pair[i]], c)
		default:
			d.node(oc[pair[i]], c, childPath(path, i))
		}
	}
}

func childPath(path []int, i int) []int {
	p := make([]int, len(path)+1)
	copy(p, path)
	p[len(path)] = i
	return p
}

func indexFrom(ids []markdown.NodeID, from int, id markdown.NodeID) int {
	for i := from; i < len(ids); i++ {
		if ids[i] == id {
			return i
		}
	}
	for i := 0; i < from && i < len(ids); i++ {
		if ids[i] == id {
			return i
		}
	}
	return -1
}

func insertAt(ids []markdown.NodeID, i int, id markdown.NodeID) []markdown.NodeID {
	if i > len(ids) {
		i = len(ids)
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeAt(ids []markdown.NodeID, i int) []markdown.NodeID {
	return append(ids[:i], ids[i+1:]...)
}
