// Package watcher reports changes to individual files.
//
// Files are watched through their parent directory, so editors that save by
// writing a temporary file and renaming it over the original are seen as a
// write to the original path. DebouncedWatcher coalesces the bursts of
// events a single save produces.
package watcher

import (
	"errors"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
)

// Op is a set of file operations.
type Op uint32

// Operations.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change to a watched file.
type Event struct {
	// Path is the absolute path of the file.
	Path string

	// Op is the operation, or the union of coalesced operations.
	Op Op

	// Timestamp is when the (last) event occurred.
	Timestamp time.Time
}

// Stats provides watcher status information.
type Stats struct {
	WatchedPaths  int
	PendingEvents int
	TotalEvents   int64
	Errors        int64
	LastError     error
}

// Watcher monitors files.
type Watcher interface {
	// Watch starts watching a file. The file does not need to exist yet.
	Watch(path string) error

	// Unwatch stops watching a file.
	Unwatch(path string) error

	// Events returns the event channel. It is closed by Close.
	Events() <-chan Event

	// Errors returns the error channel. It is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error

	// Stats returns watcher statistics.
	Stats() Stats
}
