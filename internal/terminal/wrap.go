package terminal

import (
	"strings"

	"github.com/rivo/uniseg"
)

// cluster is one grapheme cluster and its width in cells.
type cluster struct {
	text  string
	width int
}

func clusters(s string) []cluster {
	var out []cluster
	state := -1
	for s != "" {
		var c string
		var width int
		c, s, width, state = uniseg.FirstGraphemeClusterInString(s, state)
		out = append(out, cluster{text: c, width: width})
	}
	return out
}

// wrap breaks s into rows of at most width cells, preferring to break after
// spaces. Clusters wider than width get a row of their own.
func wrap(s string, width int) []string {
	if width <= 0 || uniseg.StringWidth(s) <= width {
		return []string{s}
	}

	var rows []string
	cs := clusters(s)
	for len(cs) > 0 {
		used, end, lastSpace := 0, 0, -1
		for end < len(cs) && (end == 0 || used+cs[end].width <= width) {
			if cs[end].text == " " {
				lastSpace = end
			}
			used += cs[end].width
			end++
		}
		if end < len(cs) && cs[end].text != " " && lastSpace > 0 {
			end = lastSpace + 1
		}
		rows = append(rows, strings.TrimRight(join(cs[:end]), " "))
		cs = cs[end:]
		for len(cs) > 0 && cs[0].text == " " {
			cs = cs[1:]
		}
	}
	return rows
}

// clip cuts s to at most width cells.
func clip(s string, width int) string {
	if uniseg.StringWidth(s) <= width {
		return s
	}
	used := 0
	var sb strings.Builder
	for _, c := range clusters(s) {
		if used+c.width > width {
			break
		}
		sb.WriteString(c.text)
		used += c.width
	}
	return sb.String()
}

func join(cs []cluster) string {
	var sb strings.Builder
	for _, c := range cs {
		sb.WriteString(c.text)
	}
	return sb.String()
}
