package markdown

import (
	"strconv"
	"strings"
	"unicode"
)

// Slug converts heading text to an anchor: lower case, spaces become
// hyphens, punctuation is dropped.
func Slug(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteByte('-')
		}
	}
	if sb.Len() == 0 {
		return "section"
	}
	return sb.String()
}

// assignAnchors sets the anchor of every heading, numbering repeated slugs
// in document order. Hashes along changed paths are refreshed.
func assignAnchors(root *Node) {
	seen := make(map[string]bool)
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		changed := false
		if n.Kind == KindHeading {
			anchor := uniqueSlug(seen, Slug(n.Text()))
			if n.Attr != anchor {
				n.Attr = anchor
				changed = true
			}
		}
		for _, c := range n.Children {
			if c.Kind.IsBlock() && visit(c) {
				changed = true
			}
		}
		if changed {
			n.rehash()
		}
		return changed
	}
	for _, c := range root.Children {
		visit(c)
	}
}

func uniqueSlug(seen map[string]bool, slug string) string {
	if !seen[slug] {
		seen[slug] = true
		return slug
	}
	for i := 1; ; i++ {
		candidate := slug + "-" + strconv.Itoa(i)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}
