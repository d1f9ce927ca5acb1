package pipeline

import "errors"

// Errors returned by the engine.
var (
	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("engine is closed")
)
