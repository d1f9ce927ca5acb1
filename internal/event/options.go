package event

import "github.com/dshills/marksync/internal/logging"

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	// asyncQueueSize is the capacity of the async queue.
	asyncQueueSize int

	// errorHandler is called for handler errors and panics.
	errorHandler func(error)

	log *logging.Logger
}

func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize: 1024,
	}
}

// WithAsyncQueueSize sets the async queue size.
func WithAsyncQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithErrorHandler sets a callback for handler errors and recovered panics.
func WithErrorHandler(h func(error)) BusOption {
	return func(c *busConfig) {
		c.errorHandler = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) BusOption {
	return func(c *busConfig) {
		c.log = l
	}
}
