package view

import (
	"strconv"
	"strings"

	"github.com/dshills/marksync/internal/markdown"
)

// Line is one display line of the preview.
type Line struct {
	Text   string
	Prefix string // quote bars and list indentation
	Node   markdown.NodeID
	Kind   markdown.Kind
	Level  int
}

// Layout is the view flattened into display lines.
type Layout struct {
	Lines []Line
	index map[markdown.NodeID]int
}

// LineOf returns the first line at which the node is displayed.
func (l Layout) LineOf(id markdown.NodeID) (int, bool) {
	i, ok := l.index[id]
	return i, ok
}

// NodeAt returns the node displayed on line i.
func (l Layout) NodeAt(i int) (markdown.NodeID, bool) {
	if i < 0 || i >= len(l.Lines) {
		return 0, false
	}
	return l.Lines[i].Node, true
}

// Layout flattens the view into display lines. Lines are not wrapped.
func (v *View) Layout() Layout {
	v.mu.RLock()
	defer v.mu.RUnlock()

	lb := &layoutBuilder{index: make(map[markdown.NodeID]int)}
	if v.root != nil {
		lb.index[v.root.ID] = 0
		for i, c := range v.root.Children {
			if i > 0 {
				lb.blank("")
			}
			lb.block(c, "")
		}
	}
	return Layout{Lines: lb.lines, index: lb.index}
}

type layoutBuilder struct {
	lines []Line
	index map[markdown.NodeID]int
}

func (lb *layoutBuilder) mark(n *Node) {
	if _, ok := lb.index[n.ID]; !ok {
		lb.index[n.ID] = len(lb.lines)
	}
}

func (lb *layoutBuilder) markAll(n *Node) {
	lb.mark(n)
	for _, c := range n.Children {
		lb.markAll(c)
	}
}

func (lb *layoutBuilder) add(n *Node, prefix, text string) {
	lb.lines = append(lb.lines, Line{Text: text, Prefix: prefix, Node: n.ID, Kind: n.Kind, Level: n.Level})
}

func (lb *layoutBuilder) blank(prefix string) {
	lb.lines = append(lb.lines, Line{Prefix: prefix})
}

func (lb *layoutBuilder) block(n *Node, prefix string) {
	switch n.Kind {
	case markdown.KindFrontMatter:
		lb.mark(n)
		lb.add(n, prefix, "meta: "+n.Attr)
	case markdown.KindHeading:
		lb.markAll(n)
		lb.add(n, prefix, strings.Repeat("#", n.Level)+" "+inlineText(n))
	case markdown.KindParagraph, markdown.KindTextBlock, markdown.KindDefinitionTerm:
		lb.markAll(n)
		for _, s := range strings.Split(inlineText(n), "\n") {
			lb.add(n, prefix, s)
		}
	case markdown.KindCodeBlock, markdown.KindFencedCode, markdown.KindHTMLBlock:
		lb.mark(n)
		for _, s := range strings.Split(strings.TrimSuffix(n.Literal, "\n"), "\n") {
			lb.add(n, prefix, "    "+s)
		}
	case markdown.KindThematicBreak:
		lb.mark(n)
		lb.add(n, prefix, strings.Repeat("─", 20))
	case markdown.KindBlockquote:
		lb.mark(n)
		lb.children(n, prefix+"│ ", true)
	case markdown.KindList:
		lb.mark(n)
		lb.list(n, prefix)
	case markdown.KindDefinitionDescription:
		lb.mark(n)
		lb.children(n, prefix+"    ", false)
	case markdown.KindTable:
		lb.mark(n)
		for _, row := range n.Children {
			lb.row(row, prefix)
		}
	case markdown.KindFootnoteList:
		lb.mark(n)
		for _, fn := range n.Children {
			lb.mark(fn)
			lb.children(fn, prefix+"["+strconv.Itoa(fn.Level)+"] ", false)
		}
	case markdown.KindError:
		lb.mark(n)
		lb.add(n, prefix, "! "+n.Literal)
	default:
		lb.mark(n)
		lb.children(n, prefix, false)
	}
}

// children lays out child blocks, optionally separated by blank lines.
func (lb *layoutBuilder) children(n *Node, prefix string, spaced bool) {
	for i, c := range n.Children {
		if spaced && i > 0 {
			lb.blank(prefix)
		}
		if c.Kind.IsBlock() {
			lb.block(c, prefix)
			continue
		}
		// Tight list items hold inline content directly.
		lb.markAll(c)
		if len(lb.lines) == 0 || lb.lines[len(lb.lines)-1].Node != n.ID {
			lb.add(n, prefix, "")
		}
		last := &lb.lines[len(lb.lines)-1]
		last.Text += inlineText(&Node{Children: []*Node{c}})
	}
}

func (lb *layoutBuilder) list(n *Node, prefix string) {
	marker, loose, _ := strings.Cut(n.Attr, " ")
	ordered := marker == "." || marker == ")"
	for i, item := range n.Children {
		if loose != "" && i > 0 {
			lb.blank(prefix)
		}
		bullet := "• "
		if ordered {
			bullet = strconv.Itoa(n.Level+i) + marker + " "
		}
		lb.mark(item)
		first := len(lb.lines)
		lb.children(item, prefix+strings.Repeat(" ", len([]rune(bullet))), false)
		if first < len(lb.lines) {
			lb.lines[first].Prefix = prefix + bullet
		} else {
			lb.add(item, prefix+bullet, "")
		}
	}
}

func (lb *layoutBuilder) row(row *Node, prefix string) {
	lb.markAll(row)
	cells := make([]string, len(row.Children))
	for i, c := range row.Children {
		cells[i] = inlineText(c)
	}
	lb.add(row, prefix, "| "+strings.Join(cells, " | ")+" |")
}

// inlineText renders the inline content of n as plain text. Hard breaks
// become newlines.
func inlineText(n *Node) string {
	var sb strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			switch c.Kind {
			case markdown.KindText:
				sb.WriteString(c.Literal)
				switch c.Attr {
				case "soft":
					sb.WriteByte(' ')
				case "hard":
					sb.WriteByte('\n')
				}
			case markdown.KindString, markdown.KindCodeSpan:
				sb.WriteString(c.Literal)
			case markdown.KindAutoLink:
				sb.WriteString(c.Literal)
			case markdown.KindImage:
				sb.WriteString("[image: ")
				walk(c)
				sb.WriteString("]")
			case markdown.KindTaskCheckBox:
				if c.Attr == "x" {
					sb.WriteString("[x] ")
				} else {
					sb.WriteString("[ ] ")
				}
			case markdown.KindFootnoteRef:
				sb.WriteString("[" + strconv.Itoa(c.Level) + "]")
			case markdown.KindFootnoteBacklink, markdown.KindRawHTML:
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}
