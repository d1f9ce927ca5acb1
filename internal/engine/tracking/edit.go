package tracking

import "fmt"

// EditType categorizes an edit.
type EditType uint8

const (
	// EditInsert indicates text was inserted (DeletedLen is zero).
	EditInsert EditType = iota

	// EditDelete indicates text was deleted (Inserted is empty).
	EditDelete

	// EditReplace indicates text was replaced.
	EditReplace

	// EditNone is an edit that changes nothing.
	EditNone
)

// String returns a human-readable representation of the edit type.
func (et EditType) String() string {
	switch et {
	case EditInsert:
		return "insert"
	case EditDelete:
		return "delete"
	case EditReplace:
		return "replace"
	case EditNone:
		return "none"
	default:
		return "unknown"
	}
}

// Edit is a single change to the buffer text. Offsets are byte offsets.
type Edit struct {
	// Offset is where the edit starts.
	Offset int

	// DeletedLen is the number of bytes removed at Offset.
	DeletedLen int

	// Inserted is the text placed at Offset after the removal.
	Inserted string
}

// Insert creates an edit that inserts text at offset.
func Insert(offset int, text string) Edit {
	return Edit{Offset: offset, Inserted: text}
}

// Delete creates an edit that removes n bytes at offset.
func Delete(offset, n int) Edit {
	return Edit{Offset: offset, DeletedLen: n}
}

// Replace creates an edit that replaces n bytes at offset with text.
func Replace(offset, n int, text string) Edit {
	return Edit{Offset: offset, DeletedLen: n, Inserted: text}
}

// Type returns the kind of edit.
func (e Edit) Type() EditType {
	switch {
	case e.DeletedLen == 0 && e.Inserted == "":
		return EditNone
	case e.DeletedLen == 0:
		return EditInsert
	case e.Inserted == "":
		return EditDelete
	default:
		return EditReplace
	}
}

// End returns the end of the removed range in the text before the edit.
func (e Edit) End() int {
	return e.Offset + e.DeletedLen
}

// Delta returns the byte delta of this edit.
// Positive means the buffer grew, negative means it shrank.
func (e Edit) Delta() int {
	return len(e.Inserted) - e.DeletedLen
}

// Valid reports whether the edit can be applied to a text of length n.
func (e Edit) Valid(n int) bool {
	return e.Offset >= 0 && e.DeletedLen >= 0 && e.End() <= n
}

// String returns a human-readable representation of the edit.
func (e Edit) String() string {
	text := e.Inserted
	if len(text) > 20 {
		text = text[:17] + "..."
	}
	switch e.Type() {
	case EditInsert:
		return fmt.Sprintf("Insert %q at %d", text, e.Offset)
	case EditDelete:
		return fmt.Sprintf("Delete [%d:%d)", e.Offset, e.End())
	case EditReplace:
		return fmt.Sprintf("Replace [%d:%d) with %q", e.Offset, e.End(), text)
	default:
		return fmt.Sprintf("Noop at %d", e.Offset)
	}
}

// Apply applies the edit to text. The caller must ensure e.Valid(len(text)).
func (e Edit) Apply(text string) string {
	return text[:e.Offset] + e.Inserted + text[e.End():]
}

// EditBetween returns the smallest single edit that turns before into after,
// found by trimming the common prefix and suffix. It is how whole-text
// snapshots (a file reloaded from disk) are turned back into edits.
func EditBetween(before, after string) Edit {
	prefix := 0
	limit := min(len(before), len(after))
	for prefix < limit && before[prefix] == after[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < limit-prefix && before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}

	return Edit{
		Offset:     prefix,
		DeletedLen: len(before) - prefix - suffix,
		Inserted:   after[prefix : len(after)-suffix],
	}
}
