package diff

import (
	"fmt"

	"github.com/dshills/marksync/internal/markdown"
)

// DiffAlignmentFailure records a child list that diverged too far to be
// aligned. It is never returned; the updater falls back to replacing whole
// subtrees and counts the failure.
type DiffAlignmentFailure struct {
	Parent     markdown.NodeID
	Kind       markdown.Kind
	Divergence float64
	Threshold  float64
}

func (e *DiffAlignmentFailure) Error() string {
	return fmt.Sprintf("children of %v node %d diverged %.2f (threshold %.2f)",
		e.Kind, e.Parent, e.Divergence, e.Threshold)
}
