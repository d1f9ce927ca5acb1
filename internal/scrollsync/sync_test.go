package scrollsync

import (
	"errors"
	"testing"

	"github.com/dshills/marksync/internal/diff"
	"github.com/dshills/marksync/internal/markdown"
)

const text = "# Title\n\nfirst para\n\nsecond para\n"

func render(t *testing.T, text string) *markdown.Tree {
	t.Helper()
	tree := markdown.NewParser(markdown.DefaultExtensions).ParseFull(text)
	diff.NewUpdater().Diff(nil, tree)
	return tree
}

func leafIDs(tree *markdown.Tree) []markdown.NodeID {
	var ids []markdown.NodeID
	for _, n := range tree.Leaves() {
		if n.End > n.Start {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func TestMapLookup(t *testing.T) {
	tree := render(t, text)
	m := NewMap(tree)
	leaves := leafIDs(tree)
	if len(leaves) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(leaves))
	}

	tests := []struct {
		name   string
		offset int
		want   markdown.NodeID
		stale  bool
	}{
		{"heading text", 3, leaves[0], false},
		{"blank line", 8, leaves[1], false},
		{"start of paragraph", 9, leaves[1], false},
		{"last leaf", 25, leaves[2], false},
		{"trailing newline", len(text), leaves[2], false},
		{"beyond end", len(text) + 100, leaves[2], true},
		{"negative", -4, leaves[0], true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, _, err := m.Lookup(tt.offset)
			if id != tt.want {
				t.Errorf("Lookup(%d) = %d, want %d", tt.offset, id, tt.want)
			}
			var stale *StaleReferenceError
			if got := errors.As(err, &stale); got != tt.stale {
				t.Errorf("stale = %v, want %v (err %v)", got, tt.stale, err)
			}
		})
	}
}

func TestMapRange(t *testing.T) {
	tree := render(t, text)
	m := NewMap(tree)

	heading := tree.Root.Children[0]
	r, ok := m.Range(heading.Children[0].ID)
	if !ok || r != (Range{Start: 2, End: 7}) {
		t.Errorf("Range(heading text) = %v, %v", r, ok)
	}
	if r, ok := m.Range(heading.ID); !ok || !r.Contains(2) {
		t.Errorf("Range(heading) = %v, %v", r, ok)
	}
	if _, ok := m.Range(tree.Root.ID); ok {
		t.Error("root should not be indexed")
	}
}

func TestEmptyMap(t *testing.T) {
	s := New()
	if _, ok := s.MapToView(0); ok {
		t.Error("MapToView on empty map should fail")
	}
	s.Rebuild(render(t, ""))
	if _, _, err := s.Map().Lookup(5); !errors.Is(err, ErrEmptyMap) {
		t.Errorf("err = %v, want ErrEmptyMap", err)
	}
}

func TestClampCountsStale(t *testing.T) {
	tree := render(t, text)
	s := New()
	s.Rebuild(tree)

	leaves := leafIDs(tree)
	id, ok := s.MapToView(10_000)
	if !ok || id != leaves[len(leaves)-1] {
		t.Errorf("MapToView(10000) = %d, %v", id, ok)
	}
	if _, ok := s.MapToBuffer(999_999); ok {
		t.Error("unknown ID resolved")
	}
	if got := s.Stats().StaleReferences; got != 2 {
		t.Errorf("StaleReferences = %d, want 2", got)
	}
}

func TestCallbacks(t *testing.T) {
	tree := render(t, text)
	var previews []markdown.NodeID
	var editors []Range
	s := New(
		WithPreviewHandler(func(id markdown.NodeID, _ int) {
			previews = append(previews, id)
		}),
		WithEditorHandler(func(_ markdown.NodeID, r Range) {
			editors = append(editors, r)
		}),
	)
	s.Rebuild(tree)
	leaves := leafIDs(tree)

	s.OnCaretMoved(9)
	s.OnCaretMoved(12) // same node
	s.OnCaretMoved(22)
	if len(previews) != 2 || previews[0] != leaves[1] || previews[1] != leaves[2] {
		t.Errorf("previews = %v", previews)
	}

	s.OnPreviewScrolled(leaves[1])
	if len(editors) != 1 || editors[0] != (Range{Start: 9, End: 19}) {
		t.Errorf("editors = %v", editors)
	}
	// The caret landing in the node the preview scrolled to is not echoed.
	s.OnCaretMoved(10)
	if len(previews) != 2 {
		t.Errorf("preview echoed: %v", previews)
	}

	st := s.Stats()
	if st.CaretQueries != 4 || st.PreviewQueries != 1 || st.Rebuilds != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}
