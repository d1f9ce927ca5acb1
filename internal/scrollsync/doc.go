// Package scrollsync keeps the editor caret and the preview scroll position
// aligned.
//
// A Map is an ordered range index over the leaves of a rendered tree. It
// answers offset to node and node to range queries in logarithmic time and
// is rebuilt after every render. The Synchronizer holds the current Map and
// turns caret and preview movements into scroll requests for the other side.
package scrollsync
