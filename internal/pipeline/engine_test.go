package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/marksync/internal/config"
	"github.com/dshills/marksync/internal/diff"
	"github.com/dshills/marksync/internal/engine"
	"github.com/dshills/marksync/internal/engine/tracking"
	"github.com/dshills/marksync/internal/event"
	"github.com/dshills/marksync/internal/event/events"
	"github.com/dshills/marksync/internal/event/topic"
	"github.com/dshills/marksync/internal/markdown"
	"github.com/dshills/marksync/internal/view"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Preview.DebounceMs = 50
	cfg.Preview.MaxCoalesceMs = 500
	return cfg
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(append([]Option{WithConfig(testConfig())}, opts...)...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() {
		_ = e.Close(context.Background())
	})
	return e
}

// attachView applies every published patch to a fresh view.
func attachView(t *testing.T, e *Engine) *view.View {
	t.Helper()
	v := view.New()
	_, err := e.Subscribe(events.TopicPreviewPatch, func(_ context.Context, ev any) error {
		v.Apply(ev.(event.Event[events.PatchPublished]).Payload.Patch)
		return nil
	}, event.WithPriority(event.PriorityCritical))
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	return v
}

// capturePatches records published patches.
func capturePatches(t *testing.T, e *Engine) func() []*diff.Patch {
	t.Helper()
	ch := make(chan *diff.Patch, 64)
	_, err := e.Subscribe(events.TopicPreviewPatch, func(_ context.Context, ev any) error {
		ch <- ev.(event.Event[events.PatchPublished]).Payload.Patch
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	return func() []*diff.Patch {
		var out []*diff.Patch
		for {
			select {
			case p := <-ch:
				out = append(out, p)
			default:
				return out
			}
		}
	}
}

func TestEngine_FirstRender(t *testing.T) {
	e := newEngine(t, WithContent("# Title\n\nsome *text*\n"))
	v := attachView(t, e)

	if !e.Flush() {
		t.Fatal("Flush() ran no cycle")
	}
	tree, rev := e.Tree()
	if tree == nil {
		t.Fatal("no tree after Flush")
	}
	if rev != 1 {
		t.Errorf("revision = %d, want 1", rev)
	}
	if !v.Matches(tree.Root) {
		t.Error("view does not mirror the rendered tree")
	}
	if e.Flush() {
		t.Error("second Flush() ran a cycle with nothing pending")
	}
}

func TestEngine_EditsKeepViewInStep(t *testing.T) {
	e := newEngine(t, WithContent("# Title\n\nalpha\n\nbeta\n"))
	v := attachView(t, e)
	e.Flush()

	edits := []tracking.Edit{
		tracking.Insert(0, "intro\n\n"),
		tracking.Replace(16, 5, "- one\n- two"),
		tracking.Insert(0, "```\ncode\n```\n\n"),
		tracking.Delete(0, 7),
	}
	full := markdown.NewParser(markdown.DefaultExtensions)
	for i, edit := range edits {
		if err := e.Apply(edit); err != nil {
			t.Fatalf("edit %d: Apply(%v) failed: %v", i, edit, err)
		}
		e.Flush()

		tree, _ := e.Tree()
		if !v.Matches(tree.Root) {
			t.Errorf("edit %d: view does not mirror the tree", i)
		}
		want := full.ParseFull(e.Text())
		if got, wantCount := tree.Count(), want.Count(); got != wantCount {
			t.Errorf("edit %d: incremental tree has %d nodes, full parse %d", i, got, wantCount)
		}
	}
}

func TestEngine_CodeBlockEditTouchesOnlyTheBlock(t *testing.T) {
	text := "first para\n\n```go\nx := 1\n```\n\nlast para\n"
	e := newEngine(t, WithContent(text))
	e.Flush()
	patches := capturePatches(t, e)

	tree, _ := e.Tree()
	code := tree.Root.Children[1]
	if code.Kind != markdown.KindFencedCode {
		t.Fatalf("child 1 is %v", code.Kind)
	}

	offset := strings.Index(text, "1\n```")
	if err := e.Apply(tracking.Replace(offset, 1, "42")); err != nil {
		t.Fatal(err)
	}
	e.Flush()

	got := patches()
	if len(got) != 1 {
		t.Fatalf("got %d patches, want 1", len(got))
	}
	if len(got[0].Ops) != 1 {
		t.Fatalf("ops = %v, want a single replace", got[0].Ops)
	}
	op := got[0].Ops[0]
	if op.Kind != diff.OpReplace || op.Target != code.ID {
		t.Errorf("op = %v, want replace of %d", op, code.ID)
	}
}

func TestEngine_DebouncedEditsRenderOnce(t *testing.T) {
	e := newEngine(t)

	cycles := make(chan events.RenderCycle, 8)
	_, err := e.Subscribe(events.TopicRenderCycle, func(_ context.Context, ev any) error {
		cycles <- ev.(event.Event[events.RenderCycle]).Payload
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, s := range []string{"a", "b", "c"} {
		if err := e.Apply(tracking.Insert(i, s)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case c := <-cycles:
		if c.Notifications != 3 {
			t.Errorf("Notifications = %d, want 3", c.Notifications)
		}
		if c.Revision != 3 {
			t.Errorf("Revision = %d, want 3", c.Revision)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no render cycle")
	}

	select {
	case c := <-cycles:
		t.Errorf("unexpected second cycle %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
	if e.Text() != "abc" {
		t.Errorf("Text() = %q", e.Text())
	}
}

func TestEngine_ScrollSync(t *testing.T) {
	text := "# Title\n\nfirst para\n\nsecond para\n"
	e := newEngine(t, WithContent(text))
	e.Flush()

	previews := make(chan events.ScrollPreview, 4)
	editors := make(chan events.ScrollEditor, 4)
	if _, err := e.Subscribe(events.TopicScrollPreview, func(_ context.Context, ev any) error {
		previews <- ev.(event.Event[events.ScrollPreview]).Payload
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Subscribe(events.TopicScrollEditor, func(_ context.Context, ev any) error {
		editors <- ev.(event.Event[events.ScrollEditor]).Payload
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	offset := strings.Index(text, "second")
	e.OnCaretMoved(offset)
	var sp events.ScrollPreview
	select {
	case sp = <-previews:
	default:
		t.Fatal("no scroll.preview request")
	}
	if id, _ := e.MapToView(offset); sp.Node != id || sp.Offset != offset {
		t.Errorf("scroll.preview = %+v, want node %d", sp, id)
	}

	e.OnPreviewScrolled(sp.Node)
	select {
	case se := <-editors:
		if !se.Range.Contains(offset) {
			t.Errorf("scroll.editor range %+v does not contain %d", se.Range, offset)
		}
	default:
		t.Fatal("no scroll.editor request")
	}

	// The editor following the preview must not bounce it back.
	e.OnCaretMoved(offset + 1)
	select {
	case sp := <-previews:
		t.Errorf("unexpected scroll.preview %+v", sp)
	default:
	}
}

func TestEngine_Reconfigure(t *testing.T) {
	e := newEngine(t, WithContent("| a | b |\n|---|---|\n| 1 | 2 |\n"))
	e.Flush()
	tree, _ := e.Tree()
	if tree.Root.Children[0].Kind != markdown.KindTable {
		t.Fatalf("first block is %v, want table", tree.Root.Children[0].Kind)
	}

	cfg := testConfig()
	cfg.Preview.ParserExtensions = []string{"footnotes"}
	cfg.Preview.DebounceMs = 40
	if err := e.Reconfigure(cfg); err != nil {
		t.Fatalf("Reconfigure() failed: %v", err)
	}
	if !e.Flush() {
		t.Fatal("extension change did not schedule a render")
	}
	tree, _ = e.Tree()
	if tree.Root.Children[0].Kind != markdown.KindParagraph {
		t.Errorf("first block is %v, want paragraph without tables", tree.Root.Children[0].Kind)
	}

	bad := testConfig()
	bad.Preview.MaxCoalesceMs = 1
	if err := e.Reconfigure(bad); !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("Reconfigure(invalid) = %v", err)
	}
}

func TestEngine_ApplyErrors(t *testing.T) {
	e := newEngine(t, WithContent("abc"))

	err := e.Apply(tracking.Delete(2, 5))
	if !errors.Is(err, engine.ErrOffsetOutOfRange) {
		t.Errorf("Apply(out of range) = %v", err)
	}
	if st := e.Stats(); st.Rejected != 1 || st.Edits != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := e.Apply(tracking.Insert(0, "x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Apply after Close = %v", err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestEngine_Stats(t *testing.T) {
	e := newEngine(t, WithContent("# a\n"))
	e.Flush()
	if err := e.Apply(tracking.Insert(3, "b")); err != nil {
		t.Fatal(err)
	}
	e.Flush()

	st := e.Stats()
	want := struct{ Cycles, Patches, Edits uint64 }{2, 2, 2}
	got := struct{ Cycles, Patches, Edits uint64 }{st.Cycles, st.Patches, st.Edits}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
	if st.Scheduler.Flushed != 2 || st.Diff.Diffs != 2 || st.Scroll.Rebuilds != 2 {
		t.Errorf("component stats = %+v", st)
	}
}

func TestEngine_Follow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("# one\n\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newEngine(t)
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Follow(ctx, path) }()
	time.Sleep(100 * time.Millisecond)

	want := "# one\n\nbody changed\n"
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for e.Text() != want && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if e.Text() != want {
		t.Errorf("Text() = %q, want %q", e.Text(), want)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow() = %v", err)
	}
}

// failingBus panics once while publishing the given topic.
type failingBus struct {
	event.Bus
	topic  topic.Topic
	failed atomic.Bool
}

func (b *failingBus) Publish(ctx context.Context, ev any) error {
	if tp, ok := ev.(event.TopicProvider); ok && tp.EventTopic() == b.topic && b.failed.CompareAndSwap(false, true) {
		panic("publish failed")
	}
	return b.Bus.Publish(ctx, ev)
}

func TestEngine_FailedCycleResyncs(t *testing.T) {
	inner := event.NewBus()
	if err := inner.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() {
		_ = inner.Stop(context.Background())
	})
	bus := &failingBus{Bus: inner, topic: events.TopicPreviewHighlight}
	bus.failed.Store(true)

	e := newEngine(t, WithBus(bus), WithContent("# Title\n\nalpha\n\nbeta\n"))
	v := attachView(t, e)
	e.Flush()

	// The edit's patch reaches the view, then the cycle fails.
	bus.failed.Store(false)
	if err := e.Apply(tracking.Replace(9, 5, "gamma")); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	e.Flush()
	if !bus.failed.Load() {
		t.Fatal("cycle did not fail")
	}

	// The recovery cycle is already queued; it may run on its timer first.
	e.Flush()
	tree, rev := e.Tree()
	if tree == nil {
		t.Fatal("no tree after recovery")
	}
	if rev != 2 {
		t.Errorf("revision = %d, want 2", rev)
	}
	if !v.Matches(tree.Root) {
		t.Error("view does not mirror the tree after recovery")
	}
	want := markdown.NewParser(markdown.DefaultExtensions).ParseFull(e.Text())
	if got, wantCount := tree.Count(), want.Count(); got != wantCount {
		t.Errorf("tree has %d nodes, full parse %d", got, wantCount)
	}

	// Later edits stay incremental and in step.
	if err := e.Apply(tracking.Insert(0, "intro\n\n")); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	e.Flush()
	tree, _ = e.Tree()
	if !v.Matches(tree.Root) {
		t.Error("view does not mirror the tree after a later edit")
	}
}
