package watcher

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher implements Watcher using fsnotify.
type FSNotifyWatcher struct {
	mu sync.RWMutex

	watcher *fsnotify.Watcher

	files map[string]bool // watched files
	dirs  map[string]int  // watched directories, by number of files

	events chan Event
	errors chan error

	totalEvents atomic.Int64
	totalErrors atomic.Int64
	lastError   error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// Option configures an FSNotifyWatcher.
type Option func(*options)

type options struct {
	bufferSize int
}

// WithBufferSize sets the capacity of the event channel.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// NewFSNotifyWatcher creates a watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	o := options{bufferSize: 100}
	for _, opt := range opts {
		opt(&o)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		files:   make(map[string]bool),
		dirs:    make(map[string]int),
		events:  make(chan Event, o.bufferSize),
		errors:  make(chan error, o.bufferSize),
		closeCh: make(chan struct{}),
	}
	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Watch starts watching a file.
func (w *FSNotifyWatcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if w.files[abs] {
		return ErrAlreadyWatching
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	return nil
}

// Unwatch stops watching a file.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !w.files[abs] {
		return ErrNotWatching
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		return w.watcher.Remove(dir)
	}
	return nil
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()
	close(w.events)
	close(w.errors)
	return w.watcher.Close()
}

// Stats returns watcher statistics.
func (w *FSNotifyWatcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return Stats{
		WatchedPaths:  len(w.files),
		PendingEvents: len(w.events),
		TotalEvents:   w.totalEvents.Load(),
		Errors:        w.totalErrors.Load(),
		LastError:     w.lastError,
	}
}

func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.recordError(err)
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}
	abs, err := filepath.Abs(fsEvent.Name)
	if err != nil {
		return
	}
	w.mu.RLock()
	watched := w.files[abs]
	w.mu.RUnlock()
	if !watched {
		return
	}

	select {
	case w.events <- Event{Path: abs, Op: op, Timestamp: time.Now()}:
		w.totalEvents.Add(1)
	default:
		w.recordError(errors.New("event channel full, dropping event"))
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (w *FSNotifyWatcher) recordError(err error) {
	w.totalErrors.Add(1)
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}

var _ Watcher = (*FSNotifyWatcher)(nil)
