package pipeline

import (
	"github.com/dshills/marksync/internal/config"
	"github.com/dshills/marksync/internal/event"
	"github.com/dshills/marksync/internal/logging"
)

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the initial configuration. It must be valid.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithBus publishes to an existing, started bus instead of a private one.
func WithBus(b event.Bus) Option {
	return func(e *Engine) {
		e.bus = b
	}
}

// WithContent sets the initial text. It is rendered by the first cycle.
func WithContent(text string) Option {
	return func(e *Engine) {
		e.initial = text
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}
