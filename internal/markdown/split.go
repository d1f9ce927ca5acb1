package markdown

import "strings"

// splitter finds section boundaries.
//
// A boundary is the start of a line that follows a blank line, begins in
// column 0 and cannot continue the block before it. List markers, digits,
// definition markers and indented lines never start a section. No boundary
// is placed inside a fenced code block, a multi-line HTML block or front
// matter, and fences are not looked for inside HTML blocks that end at a
// blank line. After each boundary the splitter is back in its initial state,
// so scanning from any boundary gives the same result as scanning from the
// top. Boundaries are candidates: the parser rejects one that would cut
// through a block goldmark left open.
type splitter struct {
	src string
	pos int

	single      bool // only the front matter boundary is reported
	definitions bool

	frontMatterEnd int // end of front matter, 0 when there is none
	pendingFM      bool

	prevBlank bool
	para      bool // the previous line may continue a paragraph
	fence     fence
	html      string // end marker of the open HTML block
	htmlBlank bool   // inside an HTML block that ends at a blank line
	dlOpen    bool   // a definition list may still be extended
}

type fence struct {
	char   byte
	length int
	indent int
}

func newSplitter(src string, from int, ext extensionSet, single bool) *splitter {
	s := &splitter{
		src:         src,
		pos:         from,
		single:      single,
		definitions: ext.definitions,
	}
	if from == 0 && ext.frontMatter {
		s.frontMatterEnd = frontMatterEnd(src)
		s.pendingFM = s.frontMatterEnd > 0
	}
	return s
}

// next returns the start of the next section, or len(src) when the current
// section runs to the end.
func (s *splitter) next() int {
	if s.pendingFM {
		s.pendingFM = false
		s.pos = s.frontMatterEnd
		return s.frontMatterEnd
	}

	for s.pos < len(s.src) {
		start := s.pos
		line, next := lineAt(s.src, start)
		blank := isBlank(line)

		switch {
		case s.fence.length > 0:
			if s.closesFence(line) {
				s.fence = fence{}
			}
		case s.html != "":
			if containsFold(line, s.html) {
				s.html = ""
			}
		case s.htmlBlank:
			s.htmlBlank = !blank
		case s.prevBlank && !blank && !s.single && s.isBoundary(line, start):
			s.prevBlank = false
			s.dlOpen = false
			return start
		case !blank:
			s.open(line)
		}

		s.prevBlank = blank
		s.para = !blank && s.fence.length == 0 && s.html == "" && !s.htmlBlank && !isHeading(line)
		s.pos = next
	}
	return len(s.src)
}

func (s *splitter) isBoundary(line string, start int) bool {
	switch c := line[0]; {
	case c == ' ' || c == '\t':
		return false
	case c == '-' || c == '*' || c == '+' || c == ':':
		return false
	case c >= '0' && c <= '9':
		return false
	}
	if s.definitions && s.dlOpen && s.isTerm(start) {
		return false
	}
	return true
}

// isTerm reports whether the paragraph starting at start is a definition
// term, i.e. is followed by a ':' line.
func (s *splitter) isTerm(start int) bool {
	_, pos := lineAt(s.src, start)
	for pos < len(s.src) {
		line, next := lineAt(s.src, pos)
		if isBlank(line) {
			break
		}
		if line[0] == ':' {
			return true
		}
		pos = next
	}
	for pos < len(s.src) {
		line, next := lineAt(s.src, pos)
		if !isBlank(line) {
			return line[0] == ':'
		}
		pos = next
	}
	return false
}

// open records constructs that suppress boundaries until they close.
func (s *splitter) open(line string) {
	if s.definitions && line[0] == ':' {
		s.dlOpen = true
	}
	indent, rest := leadingIndent(line)
	if indent > 3 {
		return
	}
	if f, ok := openFence(rest); ok {
		f.indent = indent
		s.fence = f
		return
	}
	if s.html = openHTML(rest); s.html != "" {
		return
	}
	s.htmlBlank = opensBlankEndedHTML(rest, s.para)
}

func (s *splitter) closesFence(line string) bool {
	indent, rest := leadingIndent(line)
	if indent != s.fence.indent {
		return false
	}
	n := runLength(rest, s.fence.char)
	return n >= s.fence.length && isBlank(rest[n:])
}

func openFence(rest string) (fence, bool) {
	if rest == "" || (rest[0] != '`' && rest[0] != '~') {
		return fence{}, false
	}
	n := runLength(rest, rest[0])
	if n < 3 {
		return fence{}, false
	}
	if rest[0] == '`' && strings.IndexByte(rest[n:], '`') >= 0 {
		return fence{}, false
	}
	return fence{char: rest[0], length: n}, true
}

// openHTML returns the end marker of an HTML block that may span blank
// lines, or "" when rest does not open one or closes it on the same line.
func openHTML(rest string) string {
	if rest == "" || rest[0] != '<' {
		return ""
	}
	var end string
	var body string
	lower := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(rest, "<!--"):
		end, body = "-->", rest[4:]
	case strings.HasPrefix(rest, "<![CDATA["):
		end, body = "]]>", rest[9:]
	case strings.HasPrefix(rest, "<?"):
		end, body = "?>", rest[2:]
	case len(rest) > 2 && rest[1] == '!' && isASCIILetter(rest[2]):
		end, body = ">", rest[2:]
	default:
		for _, tag := range []string{"script", "pre", "style", "textarea"} {
			if !strings.HasPrefix(lower[1:], tag) {
				continue
			}
			after := lower[1+len(tag):]
			if after == "" || after[0] == ' ' || after[0] == '\t' || after[0] == '>' || after[0] == '\r' {
				end, body = "</"+tag+">", rest
				break
			}
		}
	}
	if end == "" || containsFold(body, end) {
		return ""
	}
	return end
}

// blockTags are the tag names that open an HTML block ending at a blank
// line, even in the middle of a paragraph.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "base": true, "basefont": true,
	"blockquote": true, "body": true, "caption": true, "center": true, "col": true,
	"colgroup": true, "dd": true, "details": true, "dialog": true, "dir": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "frame": true, "frameset": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"head": true, "header": true, "hr": true, "html": true, "iframe": true,
	"legend": true, "li": true, "link": true, "main": true, "menu": true,
	"menuitem": true, "meta": true, "nav": true, "noframes": true, "ol": true,
	"optgroup": true, "option": true, "p": true, "param": true, "section": true,
	"source": true, "summary": true, "table": true, "tbody": true, "td": true,
	"tfoot": true, "th": true, "thead": true, "title": true, "tr": true,
	"track": true, "ul": true,
}

// opensBlankEndedHTML reports whether rest opens an HTML block that runs to
// the next blank line: a known block tag, or any lone open or closing tag
// when no paragraph is open.
func opensBlankEndedHTML(rest string, para bool) bool {
	if len(rest) < 3 || rest[0] != '<' {
		return false
	}
	i := 1
	if rest[i] == '/' {
		i++
	}
	j := i
	for j < len(rest) && (isASCIILetter(rest[j]) || (j > i && (rest[j] == '-' || (rest[j] >= '0' && rest[j] <= '9')))) {
		j++
	}
	if j == i {
		return false
	}
	name := strings.ToLower(rest[i:j])
	after := rest[j:]
	if blockTags[name] {
		return after == "" || after[0] == ' ' || after[0] == '\t' || after[0] == '\r' ||
			after[0] == '>' || strings.HasPrefix(after, "/>")
	}
	switch name {
	case "script", "style", "pre", "textarea":
		return false
	}
	if para || (after != "" && after[0] != ' ' && after[0] != '\t' && after[0] != '>' && after[0] != '/') {
		return false
	}
	t := strings.TrimRight(rest, " \t\r")
	return strings.HasSuffix(t, ">") && strings.IndexByte(t[1:len(t)-1], '<') < 0
}

func isHeading(line string) bool {
	indent, rest := leadingIndent(line)
	return indent <= 3 && strings.HasPrefix(rest, "#")
}

// frontMatterEnd returns the end of a front matter block at the start of
// src: a "---" line, content, and a closing "---" or "..." line.
func frontMatterEnd(src string) int {
	line, pos := lineAt(src, 0)
	if strings.TrimRight(line, " \t\r") != "---" || pos >= len(src) {
		return 0
	}
	for pos < len(src) {
		line, next := lineAt(src, pos)
		if t := strings.TrimRight(line, " \t\r"); t == "---" || t == "..." {
			return next
		}
		pos = next
	}
	return 0
}

// opensFrontMatter reports whether the first line of src is a front matter
// opener, closed or not.
func opensFrontMatter(src string) bool {
	line, _ := lineAt(src, 0)
	return strings.TrimRight(line, " \t\r") == "---"
}

// hasDefinitions reports whether src contains link reference or footnote
// definitions, at the top level or inside block quotes and list items.
// Those resolve across the whole document, so such documents are parsed as
// one section. A false positive only costs incrementality.
func hasDefinitions(src string) bool {
	for pos := 0; pos < len(src); {
		line, next := lineAt(src, pos)
		pos = next
		rest := stripContainers(line)
		if len(rest) < 2 || rest[0] != '[' {
			continue
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			// The label may continue on the following lines.
			close, rest = labelEnd(src, pos, rest)
		}
		if close > 1 && close+1 < len(rest) && rest[close+1] == ':' {
			return true
		}
	}
	return false
}

// labelEnd joins the lines of a label that spans lines, up to the next blank
// line, and returns the index of its closing bracket in the joined text.
func labelEnd(src string, pos int, first string) (int, string) {
	joined := first
	for i := 0; i < 4 && pos < len(src); i++ {
		line, next := lineAt(src, pos)
		if isBlank(line) {
			break
		}
		joined += "\n" + stripContainers(line)
		if close := strings.IndexByte(joined, ']'); close >= 0 {
			return close, joined
		}
		pos = next
	}
	return -1, joined
}

// stripContainers removes indentation, block quote markers and list item
// markers from the start of line.
func stripContainers(line string) string {
	for {
		rest := strings.TrimLeft(line, " \t")
		switch {
		case rest == "":
			return rest
		case rest[0] == '>':
			line = rest[1:]
		case len(rest) > 1 && (rest[0] == '-' || rest[0] == '*' || rest[0] == '+') && (rest[1] == ' ' || rest[1] == '\t'):
			line = rest[2:]
		default:
			n := 0
			for n < len(rest) && n < 10 && rest[n] >= '0' && rest[n] <= '9' {
				n++
			}
			if n > 0 && n+1 < len(rest) && (rest[n] == '.' || rest[n] == ')') && (rest[n+1] == ' ' || rest[n+1] == '\t') {
				line = rest[n+2:]
				continue
			}
			return rest
		}
	}
}

// lineAt returns the line starting at pos without its newline, and the
// start of the following line.
func lineAt(src string, pos int) (string, int) {
	i := strings.IndexByte(src[pos:], '\n')
	if i < 0 {
		return src[pos:], len(src)
	}
	return src[pos : pos+i], pos + i + 1
}

func isBlank(line string) bool {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}

// leadingIndent returns the column width of the leading whitespace, with
// tabs advancing to the next multiple of four, and the rest of the line.
func leadingIndent(line string) (int, string) {
	col := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			col++
		case '\t':
			col += 4 - col%4
		default:
			return col, line[i:]
		}
	}
	return col, ""
}

func runLength(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
