package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/marksync/internal/markdown"
)

func parse(text string) *markdown.Tree {
	return markdown.NewParser(markdown.DefaultExtensions).ParseFull(text)
}

// ids returns the node IDs of the tree in walk order.
func ids(root *markdown.Node) []markdown.NodeID {
	var out []markdown.NodeID
	markdown.Walk(root, func(n *markdown.Node, _ int) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

func opKinds(p *Patch) []OpKind {
	out := make([]OpKind, len(p.Ops))
	for i, op := range p.Ops {
		out[i] = op.Kind
	}
	return out
}

func TestFirstRender(t *testing.T) {
	u := NewUpdater()
	tree := parse("# Title\n\nSome *text*.\n")
	p := u.Diff(nil, tree)

	if len(p.Ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(p.Ops))
	}
	op := p.Ops[0]
	if op.Kind != OpReplace || op.Target != 0 || len(op.Path) != 0 {
		t.Errorf("unexpected first op %v", op)
	}
	if op.Node != tree.Root {
		t.Error("first op should carry the root")
	}

	seen := make(map[markdown.NodeID]bool)
	for _, id := range ids(tree.Root) {
		if id == 0 {
			t.Fatal("node without ID")
		}
		if seen[id] {
			t.Fatalf("duplicate ID %d", id)
		}
		seen[id] = true
	}
	if got := u.Stats().NodesAssigned; got != uint64(len(seen)) {
		t.Errorf("NodesAssigned = %d, want %d", got, len(seen))
	}
	if p.Seq != 1 {
		t.Errorf("Seq = %d, want 1", p.Seq)
	}
}

func TestIdenticalTrees(t *testing.T) {
	const text = "# Title\n\n- a\n- b\n\n> quote\n"
	u := NewUpdater()
	prev := parse(text)
	u.Diff(nil, prev)

	next := parse(text)
	p := u.Diff(prev, next)
	if !p.Empty() {
		t.Errorf("expected empty patch, got %v", p.Ops)
	}
	if diff := cmp.Diff(ids(prev.Root), ids(next.Root)); diff != "" {
		t.Errorf("IDs not inherited (-prev +next):\n%s", diff)
	}
}

func TestCodeBlockEdit(t *testing.T) {
	u := NewUpdater()
	prev := parse("# Title\n\npara one\n\n```\ncode a\n```\n\npara two\n")
	u.Diff(nil, prev)
	code := prev.Root.Children[2]

	next := parse("# Title\n\npara one\n\n```\ncode b\n```\n\npara two\n")
	p := u.Diff(prev, next)

	if len(p.Ops) != 1 {
		t.Fatalf("expected 1 op, got %v", p.Ops)
	}
	op := p.Ops[0]
	if op.Kind != OpReplace || op.Target != code.ID {
		t.Errorf("expected replace of %d, got %v", code.ID, op)
	}
	if diff := cmp.Diff([]int{2}, op.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	for _, i := range []int{0, 1, 3} {
		if prev.Root.Children[i].ID != next.Root.Children[i].ID {
			t.Errorf("child %d lost its ID", i)
		}
	}
}

func TestHeadingInsertedAtTop(t *testing.T) {
	u := NewUpdater()
	prev := parse("para one\n\npara two\n")
	u.Diff(nil, prev)

	next := parse("# New\n\npara one\n\npara two\n")
	p := u.Diff(prev, next)

	if diff := cmp.Diff([]OpKind{OpInsert}, opKinds(p)); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
	op := p.Ops[0]
	if op.Parent != prev.Root.ID || op.Index != 0 {
		t.Errorf("unexpected insert position %v", op)
	}
	if op.Node.Kind != markdown.KindHeading || op.Node.ID == 0 {
		t.Errorf("unexpected inserted node %v %d", op.Node.Kind, op.Node.ID)
	}
	if p.Count(OpMove) != 0 {
		t.Error("sibling shift must not produce moves")
	}
}

func TestMovedParagraph(t *testing.T) {
	u := NewUpdater()
	prev := parse("alpha\n\nbeta\n\ngamma\n")
	u.Diff(nil, prev)
	gamma := prev.Root.Children[2].ID

	next := parse("gamma\n\nalpha\n\nbeta\n")
	p := u.Diff(prev, next)

	if diff := cmp.Diff([]OpKind{OpMove}, opKinds(p)); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
	if op := p.Ops[0]; op.Target != gamma || op.Index != 0 {
		t.Errorf("unexpected move %v", op)
	}
	if next.Root.Children[0].ID != gamma {
		t.Error("moved paragraph should keep its ID")
	}
}

func TestRemovedBlock(t *testing.T) {
	u := NewUpdater()
	prev := parse("one\n\ntwo\n\nthree\n")
	u.Diff(nil, prev)
	two := prev.Root.Children[1].ID

	next := parse("one\n\nthree\n")
	p := u.Diff(prev, next)

	if diff := cmp.Diff([]OpKind{OpRemove}, opKinds(p)); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
	if p.Ops[0].Target != two {
		t.Errorf("removed %d, want %d", p.Ops[0].Target, two)
	}
}

func TestLeafTextChange(t *testing.T) {
	u := NewUpdater()
	prev := parse("hello world\n")
	u.Diff(nil, prev)
	para := prev.Root.Children[0]

	next := parse("hello there\n")
	p := u.Diff(prev, next)

	if diff := cmp.Diff([]OpKind{OpReplace}, opKinds(p)); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
	op := p.Ops[0]
	if op.Node.Kind != markdown.KindText {
		t.Errorf("replaced %v, want text", op.Node.Kind)
	}
	if op.Target != para.Children[0].ID {
		t.Errorf("target = %d, want %d", op.Target, para.Children[0].ID)
	}
	if next.Root.Children[0].ID != para.ID {
		t.Error("paragraph should keep its ID")
	}
}

func TestDivergenceFallback(t *testing.T) {
	prevText := "> a\n>\n> b\n>\n> c\n"
	nextText := "> # A\n>\n> # B\n>\n> # C\n"

	t.Run("replace parent", func(t *testing.T) {
		u := NewUpdater()
		prev := parse(prevText)
		u.Diff(nil, prev)
		quote := prev.Root.Children[0].ID

		next := parse(nextText)
		p := u.Diff(prev, next)
		if diff := cmp.Diff([]OpKind{OpReplace}, opKinds(p)); diff != "" {
			t.Fatalf("ops mismatch (-want +got):\n%s", diff)
		}
		if p.Ops[0].Target != quote {
			t.Errorf("target = %d, want %d", p.Ops[0].Target, quote)
		}
		if p.Fallbacks != 1 || u.Stats().AlignmentFailures != 1 {
			t.Errorf("fallbacks = %d, failures = %d", p.Fallbacks, u.Stats().AlignmentFailures)
		}
	})

	t.Run("threshold one aligns", func(t *testing.T) {
		u := NewUpdater(WithDivergenceThreshold(1))
		prev := parse(prevText)
		u.Diff(nil, prev)

		p := u.Diff(prev, parse(nextText))
		if p.Fallbacks != 0 {
			t.Errorf("fallbacks = %d, want 0", p.Fallbacks)
		}
		if p.Count(OpRemove) != 3 || p.Count(OpInsert) != 3 {
			t.Errorf("unexpected ops %v", opKinds(p))
		}
	})

	t.Run("document children", func(t *testing.T) {
		u := NewUpdater()
		prev := parse("a\n\nb\n\nc\n")
		u.Diff(nil, prev)

		next := parse("# A\n\n# B\n\n# C\n")
		p := u.Diff(prev, next)
		if p.Fallbacks != 1 {
			t.Errorf("fallbacks = %d, want 1", p.Fallbacks)
		}
		if p.Count(OpReplace) != 0 {
			t.Error("document must not be replaced")
		}
		if next.Root.ID != prev.Root.ID {
			t.Error("document should keep its ID")
		}
	})
}

func TestSetThreshold(t *testing.T) {
	u := NewUpdater()
	tests := []struct {
		in   float64
		want float64
	}{
		{0.7, 0.7},
		{0, 0.7},
		{1.5, 0.7},
		{-1, 0.7},
		{1, 1},
	}
	for _, tt := range tests {
		u.SetThreshold(tt.in)
		if got := u.Threshold(); got != tt.want {
			t.Errorf("SetThreshold(%v): Threshold() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEditSequenceKeepsIDsUnique(t *testing.T) {
	texts := []string{
		"# A\n\none\n\ntwo\n",
		"# A\n\none\n\n- x\n- y\n\ntwo\n",
		"# A\n\n- x\n- y\n- z\n\ntwo\n\none\n",
		"two\n\n# A\n\n- y\n- z\n",
		"",
		"fresh start\n",
	}
	u := NewUpdater()
	var prev *markdown.Tree
	for _, text := range texts {
		next := parse(text)
		u.Diff(prev, next)
		seen := make(map[markdown.NodeID]bool)
		for _, id := range ids(next.Root) {
			if id == 0 || seen[id] {
				t.Fatalf("%q: bad or duplicate ID %d", text, id)
			}
			seen[id] = true
		}
		prev = next
	}
	if got := u.Stats().Diffs; got != uint64(len(texts)) {
		t.Errorf("Diffs = %d, want %d", got, len(texts))
	}
}

func TestParseOpKind(t *testing.T) {
	for _, k := range []OpKind{OpInsert, OpRemove, OpReplace, OpMove} {
		got, ok := ParseOpKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseOpKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseOpKind("splice"); ok {
		t.Error("unknown op kind accepted")
	}
}
