// Package view is the in-memory rendered preview that consumes patches.
//
// A View mirrors the current document tree by node ID. Applying a patch
// that is already reflected in the view changes nothing, so a patch may be
// delivered more than once. Layout flattens the view into display lines for
// text surfaces such as the terminal preview.
package view
