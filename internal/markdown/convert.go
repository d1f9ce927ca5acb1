package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
)

// converter turns a goldmark AST of one section into nodes. Positions are
// computed relative to the section source.
type converter struct {
	src []byte

	// unclosed is set when a top-level fenced code or HTML block runs to the
	// end of the source without its closing line.
	unclosed bool
}

func (c *converter) document(doc ast.Node) []*Node {
	var out []*Node
	cursor := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		node := c.block(n, cursor)
		if node.End > cursor {
			cursor = node.End
		}
		out = append(out, node)
	}
	return out
}

func (c *converter) block(n ast.Node, cursor int) *Node {
	node := &Node{Kind: blockKind(n)}
	c.blockAttrs(node, n)

	start, end, ok := c.linesRange(n)
	prev := cursor
	if ok {
		prev = start
	}
	var cs, ce int
	var childOK bool
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		var cn *Node
		if child.Type() == ast.TypeInline {
			cn = c.inline(child, prev)
		} else {
			cn = c.block(child, prev)
		}
		node.Children = append(node.Children, cn)
		if cn.End > prev {
			prev = cn.End
		}
		if cn.End > cn.Start {
			if !childOK {
				cs, ce, childOK = cn.Start, cn.End, true
			} else {
				cs, ce = min(cs, cn.Start), max(ce, cn.End)
			}
		}
	}
	if !ok && childOK {
		start, end, ok = cs, ce, true
	}
	if !ok {
		start = c.nextContentLine(cursor)
		end = start
	}

	start = c.lineStart(start)
	end = c.lineEnd(end)

	switch v := n.(type) {
	case *ast.Heading:
		if c.isSetext(v) && end < len(c.src) {
			_, end = lineAtBytes(c.src, end)
		}
	case *ast.FencedCodeBlock:
		var closed bool
		start, end, closed = c.fenceRange(v, cursor)
		if !closed && topLevel(n) {
			c.unclosed = true
		}
	case *ast.HTMLBlock:
		if v.HasClosure() {
			end = c.lineEnd(v.ClosureLine.Stop)
		} else if topLevel(n) && !c.closedOnFirstLine(v) {
			c.unclosed = true
		}
	}

	node.Start, node.End = start, end
	return node
}

func (c *converter) blockAttrs(node *Node, n ast.Node) {
	switch v := n.(type) {
	case *ast.Heading:
		node.Level = v.Level
	case *ast.FencedCodeBlock:
		node.Attr = string(v.Language(c.src))
		node.Literal = c.linesText(n)
	case *ast.CodeBlock:
		node.Literal = c.linesText(n)
	case *ast.HTMLBlock:
		node.Literal = c.linesText(n)
		if v.HasClosure() {
			node.Literal += string(v.ClosureLine.Value(c.src))
		}
	case *ast.List:
		node.Attr = string(v.Marker)
		if v.IsOrdered() {
			node.Level = v.Start
		}
		if !v.IsTight {
			node.Attr += " loose"
		}
	case *east.Table:
		aligns := make([]string, len(v.Alignments))
		for i, a := range v.Alignments {
			aligns[i] = a.String()
		}
		node.Attr = strings.Join(aligns, ",")
	case *east.TableCell:
		node.Attr = v.Alignment.String()
	case *east.Footnote:
		node.Attr = string(v.Ref)
		node.Level = v.Index
	}
}

func (c *converter) inline(n ast.Node, cursor int) *Node {
	node := &Node{Kind: inlineKind(n)}
	start, end, ok := 0, 0, false

	switch v := n.(type) {
	case *ast.Text:
		node.Literal = string(v.Segment.Value(c.src))
		switch {
		case v.HardLineBreak():
			node.Attr = "hard"
		case v.SoftLineBreak():
			node.Attr = "soft"
		}
		node.Start, node.End = v.Segment.Start, v.Segment.Stop
		return node
	case *ast.String:
		node.Literal = string(v.Value)
	case *ast.CodeSpan:
		node.Literal = c.inlineText(v)
		if s, e, found := c.childRange(v); found {
			node.Start, node.End = c.extendCodeSpan(s, e)
		} else {
			node.Start, node.End = cursor, cursor
		}
		return node
	case *ast.Emphasis:
		node.Level = v.Level
	case *ast.Link:
		node.Attr = string(v.Destination)
		node.Literal = string(v.Title)
	case *ast.Image:
		node.Attr = string(v.Destination)
		node.Literal = string(v.Title)
	case *ast.AutoLink:
		label := v.Label(c.src)
		node.Attr = string(v.URL(c.src))
		node.Literal = string(label)
		node.Start, node.End = cursor, cursor
		if i := bytes.Index(c.src[cursor:], label); i >= 0 && len(label) > 0 {
			node.Start = cursor + i
			node.End = node.Start + len(label)
		}
		return node
	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			sb.Write(seg.Value(c.src))
			if i == 0 {
				start, end, ok = seg.Start, seg.Stop, true
			} else {
				end = max(end, seg.Stop)
			}
		}
		node.Literal = sb.String()
	case *east.TaskCheckBox:
		if v.IsChecked {
			node.Attr = "x"
		}
	case *east.FootnoteLink:
		node.Level = v.Index
	case *east.FootnoteBacklink:
		node.Level = v.Index
	}

	prev := cursor
	if ok {
		prev = start
	}
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		cn := c.inline(child, prev)
		node.Children = append(node.Children, cn)
		if cn.End > prev {
			prev = cn.End
		}
	}
	if !ok {
		start, end, ok = c.childRange(n)
	}
	if !ok {
		node.Start, node.End = cursor, cursor
		return node
	}

	switch node.Kind {
	case KindEmphasis, KindStrong:
		start, end = c.extendDelims(start, end, "*_", node.Level)
	case KindStrikethrough:
		start, end = c.extendDelims(start, end, "~", 2)
	case KindLink, KindImage:
		start, end = c.extendLink(start, end, node.Kind == KindImage)
	}
	node.Start, node.End = start, end
	return node
}

// childRange returns the union of the positioned children of an inline.
func (c *converter) childRange(n ast.Node) (int, int, bool) {
	start, end, ok := 0, 0, false
	var visit func(ast.Node)
	visit = func(n ast.Node) {
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, isText := child.(*ast.Text); isText {
				if !ok {
					start, end, ok = t.Segment.Start, t.Segment.Stop, true
				} else {
					start, end = min(start, t.Segment.Start), max(end, t.Segment.Stop)
				}
				continue
			}
			visit(child)
		}
	}
	visit(n)
	return start, end, ok
}

// inlineText concatenates the text below an inline node.
func (c *converter) inlineText(n ast.Node) string {
	var sb strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch v := child.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(c.src))
		case *ast.String:
			sb.Write(v.Value)
		default:
			sb.WriteString(c.inlineText(child))
		}
	}
	return sb.String()
}

func (c *converter) linesText(n ast.Node) string {
	lines := n.Lines()
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(c.src))
	}
	return sb.String()
}

func (c *converter) linesRange(n ast.Node) (int, int, bool) {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return 0, 0, false
	}
	return lines.At(0).Start, lines.At(lines.Len() - 1).Stop, true
}

// isSetext reports whether a heading is underlined rather than prefixed
// with '#'.
func (c *converter) isSetext(h *ast.Heading) bool {
	lines := h.Lines()
	if lines.Len() == 0 {
		return false
	}
	p := lines.At(0).Start
	for p > 0 && (c.src[p-1] == ' ' || c.src[p-1] == '\t') {
		p--
	}
	return p == 0 || c.src[p-1] != '#'
}

func topLevel(n ast.Node) bool {
	return n.Parent() != nil && n.Parent().Kind() == ast.KindDocument
}

// closedOnFirstLine reports whether an HTML block without a closure line is
// complete anyway: blocks of types 6 and 7 end at a blank line, the others
// may close on their opening line.
func (c *converter) closedOnFirstLine(v *ast.HTMLBlock) bool {
	var markers []string
	switch v.HTMLBlockType {
	case ast.HTMLBlockType1:
		markers = []string{"</script>", "</pre>", "</style>", "</textarea>"}
	case ast.HTMLBlockType2:
		markers = []string{"-->"}
	case ast.HTMLBlockType3:
		markers = []string{"?>"}
	case ast.HTMLBlockType4:
		markers = []string{">"}
	case ast.HTMLBlockType5:
		markers = []string{"]]>"}
	default:
		return true
	}
	lines := v.Lines()
	if lines.Len() == 0 {
		return true
	}
	firstSeg := lines.At(0)
	first := strings.ToLower(string(firstSeg.Value(c.src)))
	for _, m := range markers {
		if strings.Contains(first, m) {
			return true
		}
	}
	return false
}

// fenceRange covers the opening fence, the content and the closing fence,
// and reports whether the closing fence is present.
func (c *converter) fenceRange(v *ast.FencedCodeBlock, cursor int) (int, int, bool) {
	var start int
	lines := v.Lines()
	switch {
	case lines.Len() > 0:
		start = c.prevLineStart(c.lineStart(lines.At(0).Start))
	case v.Info != nil:
		start = c.lineStart(v.Info.Segment.Start)
	default:
		start = c.nextContentLine(cursor)
	}

	opener, end := lineAtBytes(c.src, start)
	if lines.Len() > 0 {
		end = c.lineEnd(lines.At(lines.Len() - 1).Stop)
	}
	i := bytes.IndexAny(opener, "`~")
	if i < 0 || end >= len(c.src) {
		return start, end, false
	}
	char := opener[i]
	width := 0
	for i+width < len(opener) && opener[i+width] == char {
		width++
	}
	closer, next := lineAtBytes(c.src, end)
	trimmed := bytes.TrimLeft(closer, " \t>")
	n := 0
	for n < len(trimmed) && trimmed[n] == char {
		n++
	}
	if n >= width && isBlank(string(trimmed[n:])) {
		return start, next, true
	}
	return start, end, false
}

// extendCodeSpan widens a code span's content range to its backticks.
func (c *converter) extendCodeSpan(start, end int) (int, int) {
	s := start
	for s > 0 && c.src[s-1] == ' ' {
		s--
	}
	if s > 0 && c.src[s-1] == '`' {
		for s > 0 && c.src[s-1] == '`' {
			s--
		}
		start = s
	}
	e := end
	for e < len(c.src) && c.src[e] == ' ' {
		e++
	}
	if e < len(c.src) && c.src[e] == '`' {
		for e < len(c.src) && c.src[e] == '`' {
			e++
		}
		end = e
	}
	return start, end
}

// extendDelims widens a range over up to n delimiter characters each side.
func (c *converter) extendDelims(start, end int, delims string, n int) (int, int) {
	for i := 0; i < n && start > 0 && strings.IndexByte(delims, c.src[start-1]) >= 0; i++ {
		start--
	}
	for i := 0; i < n && end < len(c.src) && strings.IndexByte(delims, c.src[end]) >= 0; i++ {
		end++
	}
	return start, end
}

// extendLink widens a link's text range to "[text](dest)" or "[text][ref]".
func (c *converter) extendLink(start, end int, image bool) (int, int) {
	if start > 0 && c.src[start-1] == '[' {
		start--
		if image && start > 0 && c.src[start-1] == '!' {
			start--
		}
	}
	if end >= len(c.src) || c.src[end] != ']' {
		return start, end
	}
	end++
	if end >= len(c.src) {
		return start, end
	}
	switch c.src[end] {
	case '(':
		depth := 0
		for i := end; i < len(c.src) && c.src[i] != '\n'; i++ {
			switch c.src[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return start, i + 1
				}
			}
		}
	case '[':
		if i := bytes.IndexByte(c.src[end:], ']'); i >= 0 {
			return start, end + i + 1
		}
	}
	return start, end
}

func (c *converter) lineStart(pos int) int {
	pos = min(pos, len(c.src))
	return bytes.LastIndexByte(c.src[:pos], '\n') + 1
}

// lineEnd returns the end of the line containing the byte before pos,
// newline included.
func (c *converter) lineEnd(pos int) int {
	pos = min(pos, len(c.src))
	if pos > 0 && c.src[pos-1] == '\n' {
		return pos
	}
	if i := bytes.IndexByte(c.src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(c.src)
}

func (c *converter) prevLineStart(lineStart int) int {
	if lineStart == 0 {
		return 0
	}
	return c.lineStart(lineStart - 1)
}

// nextContentLine returns the start of the first non-blank line at or after
// pos.
func (c *converter) nextContentLine(pos int) int {
	pos = c.lineStart(pos)
	for p := pos; p < len(c.src); {
		line, next := lineAtBytes(c.src, p)
		if !isBlank(string(line)) {
			return p
		}
		p = next
	}
	return pos
}

func lineAtBytes(src []byte, pos int) ([]byte, int) {
	i := bytes.IndexByte(src[pos:], '\n')
	if i < 0 {
		return src[pos:], len(src)
	}
	return src[pos : pos+i], pos + i + 1
}

func blockKind(n ast.Node) Kind {
	switch n.(type) {
	case *ast.Heading:
		return KindHeading
	case *ast.Paragraph:
		return KindParagraph
	case *ast.TextBlock:
		return KindTextBlock
	case *ast.Blockquote:
		return KindBlockquote
	case *ast.List:
		return KindList
	case *ast.ListItem:
		return KindListItem
	case *ast.CodeBlock:
		return KindCodeBlock
	case *ast.FencedCodeBlock:
		return KindFencedCode
	case *ast.HTMLBlock:
		return KindHTMLBlock
	case *ast.ThematicBreak:
		return KindThematicBreak
	case *east.Table:
		return KindTable
	case *east.TableHeader:
		return KindTableHeader
	case *east.TableRow:
		return KindTableRow
	case *east.TableCell:
		return KindTableCell
	case *east.DefinitionList:
		return KindDefinitionList
	case *east.DefinitionTerm:
		return KindDefinitionTerm
	case *east.DefinitionDescription:
		return KindDefinitionDescription
	case *east.FootnoteList:
		return KindFootnoteList
	case *east.Footnote:
		return KindFootnote
	}
	return KindParagraph
}

func inlineKind(n ast.Node) Kind {
	switch v := n.(type) {
	case *ast.Text:
		return KindText
	case *ast.String:
		return KindString
	case *ast.CodeSpan:
		return KindCodeSpan
	case *ast.Emphasis:
		if v.Level >= 2 {
			return KindStrong
		}
		return KindEmphasis
	case *ast.Link:
		return KindLink
	case *ast.Image:
		return KindImage
	case *ast.AutoLink:
		return KindAutoLink
	case *ast.RawHTML:
		return KindRawHTML
	case *east.Strikethrough:
		return KindStrikethrough
	case *east.TaskCheckBox:
		return KindTaskCheckBox
	case *east.FootnoteLink:
		return KindFootnoteRef
	case *east.FootnoteBacklink:
		return KindFootnoteBacklink
	}
	return KindText
}

// offsetNodes moves freshly converted nodes from section to document
// coordinates and seals their hashes.
func offsetNodes(nodes []*Node, base int) {
	for _, n := range nodes {
		Walk(n, func(n *Node, _ int) bool {
			n.Start += base
			n.End += base
			return true
		})
		n.seal()
	}
}
