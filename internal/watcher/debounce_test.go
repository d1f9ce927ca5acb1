package watcher

import (
	"testing"
	"time"
)

// fakeWatcher is a Watcher driven by the test.
type fakeWatcher struct {
	events chan Event
	errors chan error
	closed bool
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan Event, 10), errors: make(chan error, 10)}
}

func (f *fakeWatcher) Watch(string) error { return nil }
func (f *fakeWatcher) Unwatch(string) error { return nil }
func (f *fakeWatcher) Events() <-chan Event { return f.events }
func (f *fakeWatcher) Errors() <-chan error { return f.errors }
func (f *fakeWatcher) Stats() Stats { return Stats{WatchedPaths: 1} }
func (f *fakeWatcher) Close() error {
	f.closed = true
	return nil
}

func TestDebouncedWatcher_Coalesces(t *testing.T) {
	inner := newFakeWatcher()
	dw := NewDebouncedWatcher(inner, 50*time.Millisecond)
	defer dw.Close()

	now := time.Now()
	inner.events <- Event{Path: "/a.md", Op: OpCreate, Timestamp: now}
	inner.events <- Event{Path: "/a.md", Op: OpWrite, Timestamp: now}
	inner.events <- Event{Path: "/a.md", Op: OpWrite, Timestamp: now}

	select {
	case ev := <-dw.Events():
		if ev.Op != OpCreate|OpWrite {
			t.Errorf("Op = %v, want create|write", uint32(ev.Op))
		}
	case <-time.After(time.Second):
		t.Fatal("no debounced event")
	}

	select {
	case ev := <-dw.Events():
		t.Errorf("unexpected second event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncedWatcher_SeparatePaths(t *testing.T) {
	inner := newFakeWatcher()
	dw := NewDebouncedWatcher(inner, time.Hour)
	defer dw.Close()

	inner.events <- Event{Path: "/a.md", Op: OpWrite}
	inner.events <- Event{Path: "/b.md", Op: OpWrite}

	deadline := time.Now().Add(time.Second)
	for dw.Stats().PendingEvents < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	dw.Flush()

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case ev := <-dw.Events():
			seen[ev.Path] = true
		case <-time.After(time.Second):
			t.Fatal("missing flushed event")
		}
	}
	if !seen["/a.md"] || !seen["/b.md"] {
		t.Errorf("seen = %v", seen)
	}
}

func TestDebouncedWatcher_Close(t *testing.T) {
	inner := newFakeWatcher()
	dw := NewDebouncedWatcher(inner, time.Hour)
	inner.events <- Event{Path: "/a.md", Op: OpWrite}

	if err := dw.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !inner.closed {
		t.Error("inner watcher not closed")
	}
	if _, ok := <-dw.Events(); ok {
		t.Error("events channel should be closed")
	}
}
