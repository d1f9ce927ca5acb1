package patchlog

import (
	"errors"
	"fmt"
)

// Errors returned by the patch log.
var (
	// ErrInvalidRecord indicates a line that is not a valid patch record.
	ErrInvalidRecord = errors.New("invalid patch record")
)

// DecodeError describes a line that could not be decoded.
type DecodeError struct {
	// Line is the 1-based line number, or 0 when decoding a single record.
	Line    int
	Message string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("patch log line %d: %s", e.Line, e.Message)
	}
	return "patch record: " + e.Message
}

// Unwrap returns ErrInvalidRecord.
func (e *DecodeError) Unwrap() error {
	return ErrInvalidRecord
}
