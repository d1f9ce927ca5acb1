package markdown

import (
	"errors"
	"fmt"
)

// Errors recorded in ParseError values.
var (
	// ErrFrontMatter indicates front matter that is not valid YAML.
	ErrFrontMatter = errors.New("malformed front matter")

	// ErrParserFailure indicates the underlying parser failed on a section.
	ErrParserFailure = errors.New("parser failure")
)

// ParseError describes source the parser could not turn into regular nodes.
// The affected range is covered by a KindError node instead.
type ParseError struct {
	Start int
	End   int
	Err   error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error at [%d:%d): %v", e.Start, e.End, e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

func (e ParseError) shifted(delta int) ParseError {
	e.Start += delta
	e.End += delta
	return e
}

// errorNode builds the marker node that stands in for unparsable source.
func errorNode(start, end int, cause string, err error) *Node {
	n := &Node{
		Kind:    KindError,
		Start:   start,
		End:     end,
		Attr:    cause,
		Literal: err.Error(),
	}
	n.rehash()
	return n
}
