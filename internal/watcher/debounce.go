package watcher

import (
	"sync"
	"time"
)

// DebouncedWatcher wraps a Watcher and coalesces rapid changes to the same
// file into one event.
type DebouncedWatcher struct {
	inner Watcher
	delay time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	events   chan Event
	errors   chan error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// NewDebouncedWatcher wraps inner. Events are delivered delay after the
// last change to a file, with their operations merged.
func NewDebouncedWatcher(inner Watcher, delay time.Duration) *DebouncedWatcher {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	dw := &DebouncedWatcher{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 100),
		closeCh: make(chan struct{}),
	}
	dw.closedWg.Add(1)
	go dw.processLoop()
	return dw
}

// Watch starts watching a file.
func (dw *DebouncedWatcher) Watch(path string) error {
	return dw.inner.Watch(path)
}

// Unwatch stops watching a file.
func (dw *DebouncedWatcher) Unwatch(path string) error {
	return dw.inner.Unwatch(path)
}

// Events returns the debounced event channel.
func (dw *DebouncedWatcher) Events() <-chan Event {
	return dw.events
}

// Errors returns the error channel.
func (dw *DebouncedWatcher) Errors() <-chan error {
	return dw.errors
}

// Close stops the watcher and the wrapped watcher.
func (dw *DebouncedWatcher) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	close(dw.closeCh)
	for path, p := range dw.pending {
		p.timer.Stop()
		delete(dw.pending, path)
	}
	dw.mu.Unlock()

	dw.closedWg.Wait()
	err := dw.inner.Close()

	// Timers that fired before being stopped may still be sending.
	dw.mu.Lock()
	close(dw.events)
	close(dw.errors)
	dw.mu.Unlock()
	return err
}

// Stats returns watcher statistics.
func (dw *DebouncedWatcher) Stats() Stats {
	dw.mu.Lock()
	pending := len(dw.pending)
	dw.mu.Unlock()

	stats := dw.inner.Stats()
	stats.PendingEvents = pending
	return stats
}

func (dw *DebouncedWatcher) processLoop() {
	defer dw.closedWg.Done()

	for {
		select {
		case <-dw.closeCh:
			return

		case event, ok := <-dw.inner.Events():
			if !ok {
				return
			}
			dw.handleEvent(event)

		case err, ok := <-dw.inner.Errors():
			if !ok {
				return
			}
			select {
			case dw.errors <- err:
			default:
			}
		}
	}
}

func (dw *DebouncedWatcher) handleEvent(event Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.closed {
		return
	}
	if p, ok := dw.pending[event.Path]; ok {
		p.event.Op |= event.Op
		p.event.Timestamp = event.Timestamp
		p.timer.Reset(dw.delay)
		return
	}

	p := &pendingEvent{event: event}
	p.timer = time.AfterFunc(dw.delay, func() {
		dw.fire(event.Path)
	})
	dw.pending[event.Path] = p
}

func (dw *DebouncedWatcher) fire(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	p, ok := dw.pending[path]
	if !ok || dw.closed {
		return
	}
	delete(dw.pending, path)

	select {
	case dw.events <- p.event:
	default:
	}
}

// Flush delivers all pending events now.
func (dw *DebouncedWatcher) Flush() {
	dw.mu.Lock()
	paths := make([]string, 0, len(dw.pending))
	for path, p := range dw.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	dw.mu.Unlock()

	for _, path := range paths {
		dw.fire(path)
	}
}

var _ Watcher = (*DebouncedWatcher)(nil)
