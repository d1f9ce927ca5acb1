// Package topic provides hierarchical event topics and wildcard matching.
//
// Topics use dot notation:
//
//	preview.patch
//	scroll.editor
//	render.cycle
//
// Patterns may use "*" for exactly one segment and "**" for zero or more:
//
//	scroll.*    matches scroll.preview and scroll.editor
//	preview.**  matches preview.patch and preview.highlight
//	**          matches everything
package topic
