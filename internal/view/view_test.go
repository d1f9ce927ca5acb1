package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/marksync/internal/diff"
	"github.com/dshills/marksync/internal/markdown"
)

var edits = []string{
	"# Title\n\nfirst paragraph\n",
	"# Title\n\nfirst paragraph\n\nsecond paragraph\n",
	"# New\n\n# Title\n\nfirst paragraph\n\nsecond paragraph\n",
	"# New\n\nsecond paragraph\n\n# Title\n\nfirst paragraph\n",
	"# New\n\n- one\n- two\n\n> quoted *text*\n\n```go\nx := 1\n```\n",
	"# New\n\n- one\n- two\n- three\n\n> quoted **text**\n\n```go\nx := 2\n```\n",
	"> a\n>\n> b\n>\n> c\n",
	"> # A\n>\n> # B\n>\n> # C\n",
	"",
	"back again\n",
}

func TestApplyMirrorsTree(t *testing.T) {
	p := markdown.NewParser(markdown.DefaultExtensions)
	u := diff.NewUpdater()
	v := New()

	var prev *markdown.Tree
	for _, text := range edits {
		next := p.ParseFull(text)
		patch := u.Diff(prev, next)

		v.Apply(patch)
		if !v.Matches(next.Root) {
			t.Fatalf("view does not mirror %q after patch %v", text, patch.Ops)
		}

		again := v.Apply(patch)
		if again.Applied != 0 {
			t.Errorf("%q: reapplying applied %d ops", text, again.Applied)
		}
		if !v.Matches(next.Root) {
			t.Fatalf("view changed after reapplying patch for %q", text)
		}
		if v.Seq() != patch.Seq {
			t.Errorf("Seq = %d, want %d", v.Seq(), patch.Seq)
		}
		prev = next
	}
}

func TestApplyUnknownTargets(t *testing.T) {
	p := markdown.NewParser(nil)
	u := diff.NewUpdater()
	first := p.ParseFull("one\n\ntwo\n")
	u.Diff(nil, first)
	second := p.ParseFull("two\n\none\n\nthree\n")
	patch := u.Diff(first, second)

	// A view that never saw the first render has nothing to patch.
	v := New()
	res := v.Apply(patch)
	if res.Applied != 0 || res.Skipped != len(patch.Ops) {
		t.Errorf("got %+v, want every op skipped", res)
	}
	if v.Root() != nil {
		t.Error("root should still be empty")
	}
}

func TestApplyRemoveAndMove(t *testing.T) {
	tree := markdown.NewParser(nil).ParseFull("a\n\nb\n\nc\n")
	u := diff.NewUpdater()
	v := New()
	v.Apply(u.Diff(nil, tree))

	a, b, c := tree.Root.Children[0], tree.Root.Children[1], tree.Root.Children[2]
	ops := &diff.Patch{Seq: 9, Ops: []diff.Op{
		{Kind: diff.OpMove, Parent: tree.Root.ID, Index: 0, Target: c.ID},
		{Kind: diff.OpRemove, Parent: tree.Root.ID, Target: b.ID},
		{Kind: diff.OpRemove, Parent: tree.Root.ID, Target: b.ID},
		{Kind: diff.OpMove, Parent: tree.Root.ID, Index: 0, Target: c.ID},
	}}
	res := v.Apply(ops)
	if diff := cmp.Diff(Result{Applied: 2, Skipped: 2}, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	root := v.Root()
	got := []markdown.NodeID{root.Children[0].ID, root.Children[1].ID}
	if diff := cmp.Diff([]markdown.NodeID{c.ID, a.ID}, got); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
	if _, ok := v.Lookup(b.ID); ok {
		t.Error("removed node still indexed")
	}
	if _, ok := v.Lookup(b.Children[0].ID); ok {
		t.Error("removed subtree still indexed")
	}
}

func TestLayout(t *testing.T) {
	tree := markdown.NewParser(markdown.DefaultExtensions).ParseFull("# Title\n\npara\n\n- a\n- b\n\n> quote\n")
	u := diff.NewUpdater()
	v := New()
	v.Apply(u.Diff(nil, tree))

	l := v.Layout()
	type row struct{ Prefix, Text string }
	got := make([]row, len(l.Lines))
	for i, line := range l.Lines {
		got[i] = row{line.Prefix, line.Text}
	}
	want := []row{
		{"", "# Title"},
		{"", ""},
		{"", "para"},
		{"", ""},
		{"• ", "a"},
		{"• ", "b"},
		{"", ""},
		{"│ ", "quote"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}

	para := tree.Root.Children[1]
	if i, ok := l.LineOf(para.ID); !ok || i != 2 {
		t.Errorf("LineOf(paragraph) = %d, %v", i, ok)
	}
	if i, ok := l.LineOf(para.Children[0].ID); !ok || i != 2 {
		t.Errorf("LineOf(text) = %d, %v", i, ok)
	}
	if id, ok := l.NodeAt(0); !ok || id != tree.Root.Children[0].ID {
		t.Errorf("NodeAt(0) = %d, %v", id, ok)
	}
	if _, ok := l.NodeAt(len(l.Lines)); ok {
		t.Error("NodeAt past the end should fail")
	}
}

func TestLayoutOrderedList(t *testing.T) {
	tree := markdown.NewParser(nil).ParseFull("3. x\n4. y\n")
	v := New()
	v.Apply(diff.NewUpdater().Diff(nil, tree))

	l := v.Layout()
	if len(l.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(l.Lines))
	}
	if l.Lines[0].Prefix != "3. " || l.Lines[1].Prefix != "4. " {
		t.Errorf("prefixes = %q, %q", l.Lines[0].Prefix, l.Lines[1].Prefix)
	}
}
