package engine

import (
	"errors"
	"fmt"
)

// Errors returned by document operations.
var (
	// ErrOffsetOutOfRange indicates an offset is outside the valid document range.
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrRangeInvalid indicates an invalid range (e.g., negative length).
	ErrRangeInvalid = errors.New("invalid range")

	// ErrReadOnly indicates an edit was attempted on a read-only document.
	ErrReadOnly = errors.New("document is read-only")
)

// EditError describes an edit that could not be applied.
type EditError struct {
	Offset     int
	DeletedLen int
	Len        int // document length at the time of the edit
	Err        error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("edit [%d:%d) on document of length %d: %v",
		e.Offset, e.Offset+e.DeletedLen, e.Len, e.Err)
}

func (e *EditError) Unwrap() error {
	return e.Err
}
