// Package terminal shows the live preview in a terminal using tcell.
//
// A Preview draws the display lines of a view.View, wrapped to the screen
// width by grapheme cluster, and keeps a scroll position expressed in
// rendered nodes so it can follow scroll.preview requests. Attach connects
// it to the pipeline's bus; Run handles keys and resizes until the user
// quits.
package terminal
