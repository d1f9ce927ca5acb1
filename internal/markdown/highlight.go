package markdown

import "sort"

// Style is a set of source highlighting attributes.
type Style uint16

// Style bits.
const (
	StyleStrong Style = 1 << iota
	StyleEmphasis
	StyleStrike
	StyleCode
	StyleLink
	StyleHeading1
	StyleHeading2
	StyleHeading3
	StyleHeading4
	StyleHeading5
	StyleHeading6
	StyleQuote
	StyleMeta
	StyleError
)

// StyleSpan applies a style to the source bytes [Start, End).
type StyleSpan struct {
	Start int
	End   int
	Style Style
}

// Highlight computes editor highlighting for the source of tree. Nested
// styles combine; the result is ordered, non-overlapping and adjacent spans
// with the same style are merged.
func Highlight(tree *Tree) []StyleSpan {
	type edge struct {
		pos   int
		style Style
		open  bool
	}
	var edges []edge
	Walk(tree.Root, func(n *Node, _ int) bool {
		s := nodeStyle(n)
		if s != 0 && n.End > n.Start {
			edges = append(edges, edge{n.Start, s, true}, edge{n.End, s, false})
		}
		return true
	})
	if len(edges) == 0 {
		return nil
	}
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].pos < edges[j].pos
	})

	var counts [16]int
	current := func() Style {
		var s Style
		for bit := range counts {
			if counts[bit] > 0 {
				s |= 1 << bit
			}
		}
		return s
	}

	var spans []StyleSpan
	for i := 0; i < len(edges); {
		pos := edges[i].pos
		for ; i < len(edges) && edges[i].pos == pos; i++ {
			for bit := range counts {
				if edges[i].style&(1<<bit) == 0 {
					continue
				}
				if edges[i].open {
					counts[bit]++
				} else {
					counts[bit]--
				}
			}
		}
		if i == len(edges) {
			break
		}
		style := current()
		if style == 0 {
			continue
		}
		next := edges[i].pos
		if last := len(spans) - 1; last >= 0 && spans[last].End == pos && spans[last].Style == style {
			spans[last].End = next
			continue
		}
		spans = append(spans, StyleSpan{Start: pos, End: next, Style: style})
	}
	return spans
}

func nodeStyle(n *Node) Style {
	switch n.Kind {
	case KindStrong:
		return StyleStrong
	case KindEmphasis:
		return StyleEmphasis
	case KindStrikethrough:
		return StyleStrike
	case KindCodeSpan, KindCodeBlock, KindFencedCode:
		return StyleCode
	case KindLink, KindImage, KindAutoLink:
		return StyleLink
	case KindBlockquote:
		return StyleQuote
	case KindFrontMatter:
		return StyleMeta
	case KindError:
		return StyleError
	case KindHeading:
		if n.Level >= 1 && n.Level <= 6 {
			return StyleHeading1 << (n.Level - 1)
		}
	}
	return 0
}
