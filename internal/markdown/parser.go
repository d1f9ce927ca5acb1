package markdown

import (
	"fmt"

	"github.com/yuin/goldmark"
	gtext "github.com/yuin/goldmark/text"

	"github.com/dshills/marksync/internal/engine/tracking"
	"github.com/dshills/marksync/internal/logging"
)

// Parser produces document trees. The extension set is fixed at
// construction. A Parser is safe for concurrent use.
type Parser struct {
	ext     extensionSet
	md      goldmark.Markdown
	key     string
	unknown []string
	unsup   []string
	log     *logging.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for parser diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(p *Parser) {
		p.log = l
	}
}

// NewParser creates a parser with the given extension identifiers.
// Unknown identifiers are ignored and reported by Unknown; recognized ones
// without an implementation are reported by Unsupported.
func NewParser(extensions []string, opts ...Option) *Parser {
	ext, unknown, unsup := parseExtensions(extensions)
	p := &Parser{
		ext:     ext,
		md:      ext.markdown(),
		key:     ext.key(),
		unknown: unknown,
		unsup:   unsup,
		log:     logging.NullLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrNull(p.log).WithComponent("parser")
	for _, id := range unknown {
		p.log.Warn("ignoring unknown extension %q", id)
	}
	for _, id := range unsup {
		p.log.Warn("extension %q is not supported", id)
	}
	return p
}

// Extensions returns the enabled extensions.
func (p *Parser) Extensions() []string {
	return p.ext.names()
}

// Unknown returns the extension identifiers that were not recognized.
func (p *Parser) Unknown() []string {
	return append([]string(nil), p.unknown...)
}

// Unsupported returns the recognized extensions that have no
// implementation.
func (p *Parser) Unsupported() []string {
	return append([]string(nil), p.unsup...)
}

// ParseFull parses text without reusing anything.
func (p *Parser) ParseFull(text string) *Tree {
	return p.Parse(text, nil, tracking.Span{}, false)
}

// Parse parses text. When prior is the tree of the text before the edits
// summarized by span, sections outside the edited region are carried over
// from prior instead of being parsed again. The result is the same tree a
// full parse of text yields.
func (p *Parser) Parse(text string, prior *Tree, span tracking.Span, hasSpan bool) *Tree {
	single := hasDefinitions(text)

	var sections []section
	var reparsed, reused int
	if p.reusable(text, prior, span, hasSpan) && prior.single == single {
		sections, reparsed = p.reparse(text, prior, span, single)
		reused = len(sections) - reparsed
	} else {
		sections, _ = p.sectionsFrom(text, 0, single, nil)
		reparsed = len(sections)
	}

	t := assemble(sections, len(text), p.key)
	if p.ext.anchorLink {
		assignAnchors(t.Root)
	}
	t.Root.rehash()
	t.Reparsed, t.Reused = reparsed, reused
	t.single = single

	if p.log.Enabled(logging.LevelDebug) {
		p.log.WithFields(map[string]any{
			"len":      len(text),
			"reparsed": reparsed,
			"reused":   reused,
		}).Debug("parsed")
	}
	return t
}

// reusable reports whether prior and span describe text consistently.
func (p *Parser) reusable(text string, prior *Tree, span tracking.Span, hasSpan bool) bool {
	switch {
	case prior == nil || !hasSpan || len(prior.sections) == 0:
		return false
	case prior.key != p.key:
		return false
	case span.Start < 0 || span.Start > span.OldEnd || span.Start > span.NewEnd:
		return false
	case span.OldEnd > prior.Len || span.NewEnd > len(text):
		return false
	case prior.Len-span.OldEnd != len(text)-span.NewEnd:
		return false
	}
	return true
}

// reparse rebuilds the sections around span and reuses the rest of prior.
//
// Scanning restarts at the section before the one holding the edit, because
// the edit may remove the blank line or the first character that made the
// following boundary. It stops at the first boundary past the edit that was
// also a boundary before it; everything from there on is unchanged apart
// from its offset.
func (p *Parser) reparse(text string, prior *Tree, span tracking.Span, single bool) ([]section, int) {
	old := prior.sections
	delta := span.NewEnd - span.OldEnd

	k := sectionAt(old, max(span.Start-1, 0))
	r := max(k-1, 0)
	if p.ext.frontMatter && !old[0].frontMatter && opensFrontMatter(text) {
		// A closing line anywhere below may turn the top into front matter.
		r = 0
	}
	from := old[r].start

	resumeAt := -1
	fresh, stop := p.sectionsFrom(text, from, single, func(b int) bool {
		if b < span.NewEnd {
			return false
		}
		j := sectionStarting(old, b-delta)
		if j > r {
			resumeAt = j
			return true
		}
		return false
	})

	out := make([]section, 0, len(old)+len(fresh))
	for _, s := range old[:r] {
		out = append(out, s.shifted(0))
	}
	out = append(out, fresh...)
	if stop >= 0 && resumeAt >= 0 {
		for _, s := range old[resumeAt:] {
			out = append(out, s.shifted(delta))
		}
	}
	return out, len(fresh)
}

// maxMerges bounds how often a section is grown one candidate boundary at a
// time before it is extended to the end of the text.
const maxMerges = 8

// sectionsFrom splits and parses text from offset from. When resync accepts
// a boundary, parsing stops there and the boundary is returned; otherwise
// parsing runs to the end and -1 is returned.
//
// A candidate boundary is kept only when goldmark closed every block of the
// section before it; otherwise the section grows to the next candidate.
func (p *Parser) sectionsFrom(text string, from int, single bool, resync func(int) bool) ([]section, int) {
	sp := newSplitter(text, from, p.ext, single)
	var out []section
	for start := from; start < len(text); {
		end := sp.next()
		fm := start == 0 && sp.frontMatterEnd > 0 && end == sp.frontMatterEnd
		sec, unclosed := p.parseSection(text, start, end, fm)
		for merges := 0; unclosed && end < len(text); merges++ {
			if merges < maxMerges {
				end = sp.next()
			} else {
				end = len(text)
			}
			p.log.Debug("section [%d:%d) left a block open; extending", start, sec.end)
			sec, unclosed = p.parseSection(text, start, end, false)
		}
		out = append(out, sec)
		if end < len(text) && resync != nil && resync(end) {
			return out, end
		}
		start = end
	}
	return out, -1
}

// parseSection parses text[start:end] on its own and reports whether a
// top-level block was still open at end.
func (p *Parser) parseSection(text string, start, end int, fm bool) (sec section, unclosed bool) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrParserFailure, r)
			p.log.Error("section [%d:%d): %v", start, end, err)
			sec = section{
				start: start,
				end:   end,
				nodes: []*Node{errorNode(start, end, "parser", err)},
				errs:  []ParseError{{Start: start, End: end, Err: err}},
			}
			unclosed = false
		}
	}()

	if fm {
		return frontMatter(text, start, end), false
	}

	src := []byte(text[start:end])
	doc := p.md.Parser().Parse(gtext.NewReader(src))
	c := converter{src: src}
	nodes := c.document(doc)
	offsetNodes(nodes, start)
	return section{start: start, end: end, nodes: nodes}, c.unclosed
}
