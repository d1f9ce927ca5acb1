package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/marksync/internal/engine/tracking"
	"github.com/dshills/marksync/internal/watcher"
)

// followDelay coalesces the events of a single save.
const followDelay = 50 * time.Millisecond

// LoadFile replaces the document with the contents of path.
func (e *Engine) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return e.Load(string(data))
}

// Follow keeps the document in step with the file at path until ctx is
// done. Each time the file is saved, the difference between the document
// and the file is applied as a single edit, so only the changed region is
// parsed again. Follow does not load the file initially; call LoadFile.
func (e *Engine) Follow(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	fw, err := watcher.NewFSNotifyWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w := watcher.NewDebouncedWatcher(fw, followDelay)
	defer w.Close()

	if err := w.Watch(abs); err != nil {
		return fmt.Errorf("watching %s: %w", abs, err)
	}
	log := e.log.WithField("file", abs)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Op == watcher.OpChmod {
				continue
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				// Removed, or mid-rename. The next event brings it back.
				log.Debug("read after %v: %v", ev.Op, err)
				continue
			}
			edit := tracking.EditBetween(e.Text(), string(data))
			if edit.Type() == tracking.EditNone {
				continue
			}
			log.Debug("%v", edit)
			if err := e.Apply(edit); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				// The document moved under us; take the file whole.
				log.Warn("applying %v: %v", edit, err)
				if err := e.Load(string(data)); err != nil {
					return err
				}
			}

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			log.Warn("watch error: %v", err)
		}
	}
}
