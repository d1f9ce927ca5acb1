package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrNoInput indicates neither a document nor a patch log was given.
	ErrNoInput = errors.New("no input: give a markdown file or -replay")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("application already running")
)

// InitError represents an error during component initialization.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
