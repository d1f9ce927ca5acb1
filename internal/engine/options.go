package engine

import "github.com/dshills/marksync/internal/engine/tracking"

// Option configures a Document during creation.
type Option func(*Document)

// WithContent sets the initial content of the document.
// Initial content is not reported as a pending change.
func WithContent(content string) Option {
	return func(d *Document) {
		d.text = content
	}
}

// WithReadOnly makes the document reject edits.
func WithReadOnly(readOnly bool) Option {
	return func(d *Document) {
		d.readOnly = readOnly
	}
}

// WithHistorySize sets how many recent edits the change buffer retains.
func WithHistorySize(n int) Option {
	return func(d *Document) {
		d.changes = tracking.NewBuffer(tracking.WithHistorySize(n))
	}
}
