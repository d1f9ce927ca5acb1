package markdown

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontMatter decodes the front matter section [start, end) of text.
// Malformed YAML yields an error node covering the block.
func frontMatter(text string, start, end int) section {
	sec := section{start: start, end: end, frontMatter: true}
	raw := text[start:end]

	_, bodyStart := lineAt(raw, 0)
	bodyEnd := strings.LastIndex(strings.TrimRight(raw, "\n"), "\n") + 1
	body := ""
	if bodyEnd > bodyStart {
		body = raw[bodyStart:bodyEnd]
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(body), &meta); err != nil {
		perr := ParseError{Start: start, End: end, Err: fmt.Errorf("%w: %v", ErrFrontMatter, err)}
		sec.nodes = []*Node{errorNode(start, end, "frontmatter", perr.Err)}
		sec.errs = []ParseError{perr}
		return sec
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := &Node{
		Kind:    KindFrontMatter,
		Start:   start,
		End:     end,
		Attr:    strings.Join(keys, ","),
		Literal: body,
	}
	n.rehash()
	sec.nodes = []*Node{n}
	if meta == nil {
		meta = map[string]any{}
	}
	sec.meta = meta
	return sec
}
