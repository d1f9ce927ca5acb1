package tracking

import "fmt"

// Span is the coalesced dirty region of one or more edits.
//
// Start and OldEnd delimit the affected bytes in the text before the edits;
// Start and NewEnd delimit them in the text after the edits. Everything
// before Start is unchanged, and everything at or after OldEnd (old text)
// equals everything at or after NewEnd (new text).
type Span struct {
	Start  int
	OldEnd int
	NewEnd int
}

// SpanOf returns the span of a single edit.
func SpanOf(e Edit) Span {
	return Span{
		Start:  e.Offset,
		OldEnd: e.End(),
		NewEnd: e.Offset + len(e.Inserted),
	}
}

// Delta returns how much text after the span moved.
func (s Span) Delta() int {
	return s.NewEnd - s.OldEnd
}

// Merge folds a later edit, expressed in post-span coordinates, into the
// span. The result covers both; it never shrinks in either coordinate
// system.
func (s Span) Merge(e Edit) Span {
	// Bytes at or after NewEnd sit Delta() further along than they did
	// before the span's edits, so an edit end beyond NewEnd maps back by
	// subtracting the delta.
	oldEnd := s.OldEnd
	if end := e.End(); end > s.NewEnd {
		oldEnd = max(oldEnd, end-s.Delta())
	}

	return Span{
		Start:  min(s.Start, e.Offset),
		OldEnd: oldEnd,
		NewEnd: max(s.NewEnd, e.End()) + e.Delta(),
	}
}

// Contains reports whether the new-text offset lies inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.NewEnd
}

// String returns a human-readable representation of the span.
func (s Span) String() string {
	return fmt.Sprintf("[%d:%d)->[%d:%d)", s.Start, s.OldEnd, s.Start, s.NewEnd)
}
