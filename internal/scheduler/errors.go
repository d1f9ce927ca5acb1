package scheduler

import "errors"

var (
	// ErrInvalidInterval is returned for non-positive intervals.
	ErrInvalidInterval = errors.New("interval must be positive")

	// ErrStopped is returned when the scheduler has been stopped.
	ErrStopped = errors.New("scheduler stopped")
)
