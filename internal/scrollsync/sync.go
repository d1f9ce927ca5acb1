package scrollsync

import (
	"errors"
	"sync/atomic"

	"github.com/dshills/marksync/internal/logging"
	"github.com/dshills/marksync/internal/markdown"
)

// PreviewHandler receives requests to scroll the preview to a node.
type PreviewHandler func(id markdown.NodeID, offset int)

// EditorHandler receives requests to move the editor to a range.
type EditorHandler func(id markdown.NodeID, r Range)

// Stats holds synchronizer counters.
type Stats struct {
	Rebuilds        uint64
	CaretQueries    uint64
	PreviewQueries  uint64
	StaleReferences uint64
}

// Synchronizer maps caret and preview movements through the current Map.
// Rebuild is called by the render goroutine; the other methods may be
// called from any goroutine.
type Synchronizer struct {
	current atomic.Pointer[Map]
	preview PreviewHandler
	editor  EditorHandler
	log     *logging.Logger

	lastPreview atomic.Uint64
	rebuilds    atomic.Uint64
	caret       atomic.Uint64
	scrolled    atomic.Uint64
	stale       atomic.Uint64
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithPreviewHandler sets the handler for preview scroll requests.
func WithPreviewHandler(h PreviewHandler) Option {
	return func(s *Synchronizer) {
		s.preview = h
	}
}

// WithEditorHandler sets the handler for editor scroll requests.
func WithEditorHandler(h EditorHandler) Option {
	return func(s *Synchronizer) {
		s.editor = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Synchronizer) {
		s.log = l
	}
}

// New creates a synchronizer with an empty map.
func New(opts ...Option) *Synchronizer {
	s := &Synchronizer{}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNull(s.log).WithComponent("scrollsync")
	s.current.Store(NewMap(nil))
	return s
}

// Rebuild replaces the map with one for tree.
func (s *Synchronizer) Rebuild(tree *markdown.Tree) {
	s.current.Store(NewMap(tree))
	s.rebuilds.Add(1)
}

// Map returns the current map.
func (s *Synchronizer) Map() *Map {
	return s.current.Load()
}

// MapToView returns the node displayed for the buffer offset. It fails only
// before the first render of a non-empty document.
func (s *Synchronizer) MapToView(offset int) (markdown.NodeID, bool) {
	id, _, err := s.current.Load().Lookup(offset)
	if err != nil {
		if errors.Is(err, ErrEmptyMap) {
			return 0, false
		}
		s.stale.Add(1)
		s.log.Debug("clamped: %v", err)
	}
	return id, true
}

// MapToBuffer returns the buffer range of a rendered node.
func (s *Synchronizer) MapToBuffer(id markdown.NodeID) (Range, bool) {
	r, ok := s.current.Load().Range(id)
	if !ok {
		s.stale.Add(1)
		s.log.Debug("%v", &StaleReferenceError{ID: id})
	}
	return r, ok
}

// OnCaretMoved scrolls the preview to the node under the caret. Repeated
// moves within the same node do not produce new requests.
func (s *Synchronizer) OnCaretMoved(offset int) {
	s.caret.Add(1)
	id, ok := s.MapToView(offset)
	if !ok || s.preview == nil {
		return
	}
	if s.lastPreview.Swap(uint64(id)) == uint64(id) {
		return
	}
	s.preview(id, offset)
}

// OnPreviewScrolled moves the editor to the source of the node at the top
// of the preview.
func (s *Synchronizer) OnPreviewScrolled(id markdown.NodeID) {
	s.scrolled.Add(1)
	r, ok := s.MapToBuffer(id)
	if !ok || s.editor == nil {
		return
	}
	// The editor moving into this node must not bounce the preview back.
	s.lastPreview.Store(uint64(id))
	s.editor(id, r)
}

// Stats returns a snapshot of the counters.
func (s *Synchronizer) Stats() Stats {
	return Stats{
		Rebuilds:        s.rebuilds.Load(),
		CaretQueries:    s.caret.Load(),
		PreviewQueries:  s.scrolled.Load(),
		StaleReferences: s.stale.Load(),
	}
}
