package engine

import (
	"sync"

	"github.com/dshills/marksync/internal/engine/tracking"
)

// Revision identifies a state of the document text. It increases by one for
// every applied edit.
type Revision uint64

// Snapshot is the document state handed to a render cycle.
type Snapshot struct {
	// Text is the full document text.
	Text string

	// Revision is the revision of Text.
	Revision Revision

	// Span is the dirty region since the previous Take.
	// Only meaningful when HasSpan is true.
	Span tracking.Span

	// HasSpan is false when nothing changed since the previous Take.
	HasSpan bool

	// Edits is the number of edits folded into Span.
	Edits int
}

// Document is the edited markdown text plus its pending changes.
// All operations are thread-safe.
type Document struct {
	mu       sync.RWMutex
	text     string
	revision Revision
	readOnly bool
	changes  *tracking.Buffer
}

// NewDocument creates a document.
func NewDocument(opts ...Option) *Document {
	d := &Document{}
	for _, opt := range opts {
		opt(d)
	}
	if d.changes == nil {
		d.changes = tracking.NewBuffer()
	}
	return d
}

// Apply applies an edit to the text and records it in the change buffer.
func (d *Document) Apply(e tracking.Edit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyLocked(e)
}

func (d *Document) applyLocked(e tracking.Edit) error {
	if d.readOnly {
		return ErrReadOnly
	}
	if err := d.validateLocked(e); err != nil {
		return err
	}

	d.text = e.Apply(d.text)
	d.revision++
	d.changes.Apply(e)
	return nil
}

// Replace swaps the whole text, recorded as a single edit.
func (d *Document) Replace(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyLocked(tracking.Replace(0, len(d.text), text))
}

// validateLocked checks an edit against the current text (must hold lock).
func (d *Document) validateLocked(e tracking.Edit) error {
	switch {
	case e.DeletedLen < 0:
		return &EditError{Offset: e.Offset, DeletedLen: e.DeletedLen, Len: len(d.text), Err: ErrRangeInvalid}
	case !e.Valid(len(d.text)):
		return &EditError{Offset: e.Offset, DeletedLen: e.DeletedLen, Len: len(d.text), Err: ErrOffsetOutOfRange}
	}
	return nil
}

// Take returns the current text and atomically consumes the pending span.
func (d *Document) Take() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	edits := d.changes.Pending()
	span, ok := d.changes.TakeSpan()
	return Snapshot{
		Text:     d.text,
		Revision: d.revision,
		Span:     span,
		HasSpan:  ok,
		Edits:    edits,
	}
}

// Text returns the current text.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Len returns the length of the text in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// Revision returns the current revision.
func (d *Document) Revision() Revision {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// Dirty reports whether edits are waiting for a render.
func (d *Document) Dirty() bool {
	_, ok := d.changes.Peek()
	return ok
}

// Changes returns the document's change buffer.
func (d *Document) Changes() *tracking.Buffer {
	return d.changes
}

// SetReadOnly toggles read-only mode.
func (d *Document) SetReadOnly(readOnly bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readOnly = readOnly
}
