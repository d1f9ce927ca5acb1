package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dshills/marksync/internal/watcher"
)

// reloadDelay coalesces the events of a single save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the configuration at path whenever the file changes and
// calls onChange with each new valid configuration that differs from the
// previous one. Load and validation failures are logged; the previous
// configuration stays in effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config), opts ...Option) error {
	o := newLoadOptions(opts)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	fw, err := watcher.NewFSNotifyWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	w := watcher.NewDebouncedWatcher(fw, reloadDelay)
	defer w.Close()

	if err := w.Watch(abs); err != nil {
		return fmt.Errorf("watching %s: %w", abs, err)
	}

	current, err := Load(abs, opts...)
	if err != nil {
		o.log.Warn("initial load of %s: %v", abs, err)
		current = nil
	}

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
			next, err := Load(abs, opts...)
			if err != nil {
				o.log.Warn("reloading %s: %v", abs, err)
				continue
			}
			if current != nil {
				changed := Changed(current, next)
				if len(changed) == 0 {
					continue
				}
				o.log.Info("reloaded %s: %v", abs, changed)
			}
			current = next
			onChange(next)

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			o.log.Warn("watching %s: %v", abs, err)
		}
	}
}
