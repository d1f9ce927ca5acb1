// Package tracking provides the change buffer that sits between the editing
// surface and the render pipeline.
//
// Edits are folded into a single pending span as they arrive. The span
// describes the dirty region since the last render in two coordinate
// systems: Start and OldEnd are offsets in the text as it was when the span
// was last taken, NewEnd is an offset in the current text. A render cycle
// takes the span atomically and uses it as a re-parse hint.
//
// # Usage
//
//	buf := tracking.NewBuffer()
//	buf.Apply(tracking.Insert(10, "hello"))
//	buf.Apply(tracking.Delete(2, 3))
//
//	span, ok := buf.TakeSpan() // ok == true, span covers both edits
//	_, ok = buf.TakeSpan()     // ok == false, nothing since the last take
//
// # Thread Safety
//
// All Buffer operations are safe for concurrent use. Edits and spans are
// plain values.
//
// # History
//
// A bounded ring of recent edits is kept for diagnostics; it never affects
// the span.
package tracking
