// Package diff compares successive document trees and produces the patch
// that turns the rendered view of the old tree into the view of the new one.
//
// Node identity is established here: when a tree is diffed against its
// predecessor, every new node either inherits the ID of the old node it was
// matched with or receives a fresh one. Patch operations refer to nodes by
// ID, which makes applying a patch a second time a no-op.
package diff
