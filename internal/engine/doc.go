// Package engine holds the edited document text together with its change
// buffer.
//
// The Document is the single owner of the buffer text on the pipeline side.
// Apply validates an edit, updates the text and folds the edit into the
// pending span under one lock, so a render cycle that calls Take always sees
// a text and a span that agree with each other.
//
//	doc := engine.NewDocument(engine.WithContent("# Title\n"))
//	_ = doc.Apply(tracking.Insert(7, " two"))
//	snap := doc.Take() // snap.Text == "# Title two\n", snap.HasSpan == true
package engine
