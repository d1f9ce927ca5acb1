// Package markdown turns markdown source into the document tree the preview
// is built from.
//
// Parsing is delegated to goldmark. The adapter splits the text into
// sections at hard block boundaries (a blank line followed by a line that
// cannot continue the previous block) and parses each section on its own.
// A full parse and an incremental parse share the same sectioning, so an
// incremental parse that reuses the sections outside an edit yields the
// same tree as parsing the whole text again:
//
//	p := markdown.NewParser([]string{"gfm", "frontmatter"})
//	tree := p.Parse(text, nil, tracking.Span{}, false)
//	// ...edit...
//	tree = p.Parse(newText, tree, span, true)
//
// Parsing never fails. Problems such as malformed front matter become
// KindError nodes and are listed in Tree.Errors.
package markdown
