package scrollsync

import (
	"errors"
	"fmt"

	"github.com/dshills/marksync/internal/markdown"
)

// ErrEmptyMap is returned when the map has no positions to clamp to.
var ErrEmptyMap = errors.New("position map is empty")

// StaleReferenceError describes a query that referred to a position the
// current map does not know. It is counted and logged; queries are answered
// by clamping instead.
type StaleReferenceError struct {
	Offset int
	ID     markdown.NodeID
	Len    int
}

// Error implements the error interface.
func (e *StaleReferenceError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("stale node reference %d", e.ID)
	}
	return fmt.Sprintf("stale offset %d outside [0, %d]", e.Offset, e.Len)
}
