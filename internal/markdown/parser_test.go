package markdown

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	gtext "github.com/yuin/goldmark/text"

	"github.com/dshills/marksync/internal/engine/tracking"
)

const sample = `---
title: Sample
tags: [a, b]
---
# Introduction

Some *emphasis* and **strong** text with ` + "`code`" + `.

- one
- two

  continued

` + "```go" + `
func main() {

	println("hi")
}
` + "```" + `

Setext heading
--------------

| a | b |
|---|:-:|
| 1 | 2 |

<!--
comment

still comment
-->

> quoted
> text

Term
: definition

Another
: one more

Closing paragraph with https://example.com and ~~strike~~.
`

var allExtensions = []string{"gfm", "footnotes", "definitions", "typographer", "frontmatter", "anchorlink"}

func kinds(nodes []*Node) []Kind {
	out := make([]Kind, len(nodes))
	for i, n := range nodes {
		out[i] = n.Kind
	}
	return out
}

func TestParseStructure(t *testing.T) {
	p := NewParser(allExtensions)
	tree := p.ParseFull(sample)

	want := []Kind{
		KindFrontMatter,
		KindHeading,
		KindParagraph,
		KindList,
		KindFencedCode,
		KindHeading,
		KindTable,
		KindHTMLBlock,
		KindBlockquote,
		KindDefinitionList,
		KindParagraph,
	}
	if diff := cmp.Diff(want, kinds(tree.Root.Children)); diff != "" {
		t.Errorf("top-level kinds mismatch (-want +got):\n%s", diff)
	}
	if len(tree.Errors) != 0 {
		t.Errorf("unexpected errors: %v", tree.Errors)
	}
	if tree.Meta["title"] != "Sample" {
		t.Errorf("Meta[title] = %v", tree.Meta["title"])
	}
	if tree.Root.Start != 0 || tree.Root.End != len(sample) {
		t.Errorf("root range = [%d:%d)", tree.Root.Start, tree.Root.End)
	}
}

func TestParseBlockRanges(t *testing.T) {
	p := NewParser(allExtensions)
	tree := p.ParseFull(sample)

	source := func(n *Node) string {
		return sample[n.Start:n.End]
	}
	for _, n := range tree.Root.Children {
		if n.Start > n.End || n.End > len(sample) {
			t.Fatalf("%v has invalid range [%d:%d)", n.Kind, n.Start, n.End)
		}
		switch n.Kind {
		case KindFencedCode:
			got := source(n)
			if !strings.HasPrefix(got, "```go\n") || !strings.HasSuffix(got, "```\n") {
				t.Errorf("fenced code range = %q, want opener through closer", got)
			}
			if n.Attr != "go" {
				t.Errorf("fenced code language = %q", n.Attr)
			}
		case KindHeading:
			if n.Level == 2 && source(n) != "Setext heading\n--------------\n" {
				t.Errorf("setext heading range = %q", source(n))
			}
			if n.Level == 1 && source(n) != "# Introduction\n" {
				t.Errorf("atx heading range = %q", source(n))
			}
		case KindFrontMatter:
			if !strings.HasPrefix(source(n), "---\n") || !strings.HasSuffix(source(n), "---\n") {
				t.Errorf("front matter range = %q", source(n))
			}
		}
	}
}

func TestParseInlineRanges(t *testing.T) {
	p := NewParser(nil)
	text := "Some *emphasis* and **strong** and `code` and [link](http://x.y)."
	tree := p.ParseFull(text)

	para := tree.Root.Children[0]
	found := map[Kind]string{}
	for _, c := range para.Children {
		if c.Kind != KindText {
			found[c.Kind] = text[c.Start:c.End]
		}
	}
	want := map[Kind]string{
		KindEmphasis: "*emphasis*",
		KindStrong:   "**strong**",
		KindCodeSpan: "`code`",
		KindLink:     "[link](http://x.y)",
	}
	if diff := cmp.Diff(want, found); diff != "" {
		t.Errorf("inline ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestSectionBoundaries(t *testing.T) {
	tests := []struct {
		name string
		ext  []string
		text string
		want []int
	}{
		{
			name: "paragraphs and list",
			text: "# A\n\npara\n\n- item\n\nnext\n",
			want: []int{0, 5, 19},
		},
		{
			name: "blank lines inside fence",
			text: "```\na\n\nb\n```\n\nc\n",
			want: []int{0, 14},
		},
		{
			name: "html comment spanning blank lines",
			text: "<!--\n\nx\n-->\n\ny\n",
			want: []int{0, 13},
		},
		{
			name: "front matter",
			ext:  []string{"frontmatter"},
			text: "---\na: 1\n---\ntext\n",
			want: []int{0, 13},
		},
		{
			name: "link reference definitions",
			text: "[x]: /u\n\npara\n\nmore\n",
			want: []int{0},
		},
		{
			name: "definition list continues",
			ext:  []string{"definitions"},
			text: "Apple\n: fruit\n\nOrange\n: fruit\n\nPlain\n",
			want: []int{0, 31},
		},
		{
			name: "definition lines without extension",
			text: "Apple\n: fruit\n\nOrange\n: fruit\n\nPlain\n",
			want: []int{0, 15, 31},
		},
		{
			name: "definition inside block quote",
			text: "[foo]\n\n> [foo]: /url\n\nafter\n",
			want: []int{0},
		},
		{
			name: "definition inside list item",
			text: "[a]\n\n1. item\n\n   [a]: /x\n",
			want: []int{0},
		},
		{
			name: "fence line inside html block",
			text: "<div>\n```\n</div>\n\n```\nfoo\n\nbar\n```\n\nafter\n",
			want: []int{0, 18, 36},
		},
		{
			name: "unclosed fence swallows the rest",
			text: "para\n\n```\ncode\n\nmore\n",
			want: []int{0, 6},
		},
		{
			name: "indented continuation",
			text: "para\n\n    code\n\nnext\n",
			want: []int{0, 16},
		},
		{
			name: "empty",
			text: "",
			want: []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewParser(tt.ext).ParseFull(tt.text)
			if diff := cmp.Diff(tt.want, tree.SectionStarts()); diff != "" {
				t.Errorf("section starts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// wholeDocument converts a single goldmark parse of all of text.
func wholeDocument(p *Parser, text string) []*Node {
	src := []byte(text)
	c := converter{src: src}
	return c.document(p.md.Parser().Parse(gtext.NewReader(src)))
}

func TestFullParseMatchesWholeDocument(t *testing.T) {
	// Front matter and anchors are computed outside goldmark.
	p := NewParser([]string{"gfm", "footnotes", "definitions", "typographer"})
	tests := []struct {
		name string
		text string
	}{
		{"sample", sample},
		{"definition in block quote", "[foo]\n\n> [foo]: /url\n"},
		{"definition in list item", "[bar]\n\n- item\n\n  [bar]: /b\n\nend\n"},
		{"label across lines", "[multi\nline]\n\ntext\n\n[multi\nline]: /m\n"},
		{"footnotes", "Text[^1].\n\n[^1]: note\n\nmore\n"},
		{"fence line inside block tag", "<div>\n```\n</div>\n\n```\nfoo\n\nbar\n```\n\nafter\n"},
		{"fence line inside lone tag", "<span class=\"x\">\n```\n\n```\ncode\n\nmore\n```\n\ntail\n"},
		{"lone tag after paragraph", "para\n<span>\n```\n\nx\n```\n\ny\n"},
		{"unclosed fence", "para\n\n```\ncode\n\nmore\n"},
		{"unclosed pre", "<pre>\n\ncode\n\nrest\n"},
		{"html comment", "<!-- open\n\ntext\n\n-->\n\nafter\n"},
		{"mixed blocks", "> quote\n\n- a\n\n  b\n\n```\nx\n```\n\n# Head\n\n| a |\n|---|\n| 1 |\n\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := wholeDocument(p, tt.text)
			got := p.ParseFull(tt.text).Root.Children
			if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(Node{})); diff != "" {
				t.Errorf("sectioned parse differs from whole document (-whole +sectioned):\n%s", diff)
			}
		})
	}
}

// assertSameTree fails when an incrementally parsed tree differs from a
// full parse of the same text.
func assertSameTree(t *testing.T, p *Parser, text string, got *Tree) {
	t.Helper()
	want := p.ParseFull(text)
	if diff := cmp.Diff(want.Root, got.Root, cmp.AllowUnexported(Node{})); diff != "" {
		t.Fatalf("incremental tree differs from full parse of %q (-full +incremental):\n%s", text, diff)
	}
	if diff := cmp.Diff(want.SectionStarts(), got.SectionStarts()); diff != "" {
		t.Fatalf("sections differ (-full +incremental):\n%s", diff)
	}
	if diff := cmp.Diff(errorStrings(want.Errors), errorStrings(got.Errors)); diff != "" {
		t.Fatalf("errors differ (-full +incremental):\n%s", diff)
	}
	if diff := cmp.Diff(want.Meta, got.Meta); diff != "" {
		t.Fatalf("meta differs (-full +incremental):\n%s", diff)
	}
}

func errorStrings(errs []ParseError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func TestIncrementalMatchesFull(t *testing.T) {
	p := NewParser(allExtensions)
	rng := rand.New(rand.NewSource(42))
	fragments := []string{
		"a", "word ", "\n", "\n\n", "# ", "- ", "1. ", "```", "~~~", "`", "*", "**",
		"> ", "| x |", ": ", "<!--", "-->", "<pre>", "</pre>", "---", "[", "]", "(u)",
		"    ", "\t", "[r]: /x\n", "Term\n: def\n", "_", "~~",
	}

	text := sample
	tree := p.ParseFull(text)
	for step := 0; step < 300; step++ {
		buf := tracking.NewBuffer()
		for i := 0; i < 1+rng.Intn(3); i++ {
			off := rng.Intn(len(text) + 1)
			del := 0
			if rng.Intn(3) == 0 {
				del = min(rng.Intn(12), len(text)-off)
			}
			ins := ""
			if rng.Intn(4) != 0 {
				ins = fragments[rng.Intn(len(fragments))]
			}
			e := tracking.Replace(off, del, ins)
			text = e.Apply(text)
			buf.Apply(e)
		}
		span, ok := buf.TakeSpan()
		tree = p.Parse(text, tree, span, ok)
		assertSameTree(t, p, text, tree)
	}
}

func TestIncrementalReusesSections(t *testing.T) {
	p := NewParser(allExtensions)
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("Paragraph text here.\n\n")
	}
	text := sb.String()
	tree := p.ParseFull(text)
	if tree.SectionCount() != 50 {
		t.Fatalf("SectionCount() = %d, want 50", tree.SectionCount())
	}

	e := tracking.Insert(22*25+5, "more ")
	text = e.Apply(text)
	next := p.Parse(text, tree, tracking.SpanOf(e), true)

	if next.Reparsed > 3 {
		t.Errorf("Reparsed = %d, want at most 3", next.Reparsed)
	}
	if next.Reused < 45 {
		t.Errorf("Reused = %d, want at least 45", next.Reused)
	}
	assertSameTree(t, p, text, next)
}

func TestIncrementalFenceRescopes(t *testing.T) {
	p := NewParser(allExtensions)
	text := "intro\n\nalpha\n\nbeta\n\ngamma\n"
	tree := p.ParseFull(text)

	// Opening a fence turns everything below into code.
	e := tracking.Insert(7, "```\n")
	text = e.Apply(text)
	tree = p.Parse(text, tree, tracking.SpanOf(e), true)
	assertSameTree(t, p, text, tree)

	if got := kinds(tree.Root.Children); !cmp.Equal(got, []Kind{KindParagraph, KindFencedCode}) {
		t.Fatalf("kinds after opening fence = %v", got)
	}

	// Closing it again restores the paragraphs after it.
	e = tracking.Insert(len("intro\n\n```\nalpha\n"), "```\n")
	text = e.Apply(text)
	tree = p.Parse(text, tree, tracking.SpanOf(e), true)
	assertSameTree(t, p, text, tree)

	want := []Kind{KindParagraph, KindFencedCode, KindParagraph, KindParagraph}
	if got := kinds(tree.Root.Children); !cmp.Equal(got, want) {
		t.Fatalf("kinds after closing fence = %v, want %v", got, want)
	}
}

func TestIncrementalFrontMatterAppears(t *testing.T) {
	p := NewParser(allExtensions)
	text := "---\ntitle: x\n\nauthor: y\n\nlang: en\n\npara two\n"
	tree := p.ParseFull(text)
	if tree.Meta != nil {
		t.Fatalf("unclosed front matter decoded: %v", tree.Meta)
	}

	off := strings.Index(text, "para two")
	e := tracking.Insert(off, "---\n")
	text = e.Apply(text)
	tree = p.Parse(text, tree, tracking.SpanOf(e), true)
	assertSameTree(t, p, text, tree)
	if tree.Root.Children[0].Kind != KindFrontMatter {
		t.Errorf("first node = %v, want front matter", tree.Root.Children[0].Kind)
	}
	if tree.Meta["lang"] != "en" {
		t.Errorf("Meta = %v", tree.Meta)
	}
}

func TestParseInconsistentHintFallsBack(t *testing.T) {
	p := NewParser(nil)
	tree := p.ParseFull("one\n\ntwo\n")

	text := "one\n\ntwo\n\nthree\n"
	// The span claims a smaller change than happened; it must be ignored.
	got := p.Parse(text, tree, tracking.Span{Start: 0, OldEnd: 1, NewEnd: 1}, true)
	assertSameTree(t, p, text, got)
	if got.Reused != 0 {
		t.Errorf("Reused = %d, want 0", got.Reused)
	}
}

func TestFrontMatterErrors(t *testing.T) {
	p := NewParser([]string{"frontmatter"})
	text := "---\ntitle: [unclosed\n---\nbody\n"
	tree := p.ParseFull(text)

	if len(tree.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(tree.Errors))
	}
	if !errors.Is(tree.Errors[0], ErrFrontMatter) {
		t.Errorf("error = %v, want ErrFrontMatter", tree.Errors[0])
	}
	first := tree.Root.Children[0]
	if first.Kind != KindError || first.Start != 0 || first.End != strings.Index(text, "body") {
		t.Errorf("first node = %v [%d:%d), want error node over front matter", first.Kind, first.Start, first.End)
	}
	if tree.Root.Children[1].Kind != KindParagraph {
		t.Errorf("body kind = %v", tree.Root.Children[1].Kind)
	}
}

func TestFrontMatterDisabled(t *testing.T) {
	tree := NewParser(nil).ParseFull("---\ntitle: x\n---\n")
	for _, n := range tree.Root.Children {
		if n.Kind == KindFrontMatter {
			t.Fatal("front matter parsed without the extension")
		}
	}
}

func TestUnknownExtensions(t *testing.T) {
	p := NewParser([]string{"tables", "wikilink", "GFM", "yaml-front-matter", "aside", "emoji"})
	if diff := cmp.Diff([]string{"emoji"}, p.Unknown()); diff != "" {
		t.Errorf("Unknown() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"aside", "wikilink"}, p.Unsupported()); diff != "" {
		t.Errorf("Unsupported() mismatch (-want +got):\n%s", diff)
	}
	want := []string{"tables", "strikethrough", "tasklist", "linkify", "frontmatter"}
	if diff := cmp.Diff(want, p.Extensions()); diff != "" {
		t.Errorf("Extensions() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnchors(t *testing.T) {
	p := NewParser([]string{"anchorlink"})
	tree := p.ParseFull("# Intro\n\n## Getting *Started*!\n\n# Intro\n\n#\n")

	var got []string
	Walk(tree.Root, func(n *Node, _ int) bool {
		if n.Kind == KindHeading {
			got = append(got, n.Attr)
		}
		return true
	})
	want := []string{"intro", "getting-started", "intro-1", "section"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("anchors mismatch (-want +got):\n%s", diff)
	}
}

func TestAnchorsFollowEdits(t *testing.T) {
	p := NewParser([]string{"anchorlink"})
	text := "# Intro\n\npara\n\n# Intro\n"
	tree := p.ParseFull(text)

	// Renaming the first heading frees the plain slug for the second one.
	e := tracking.Replace(2, 5, "Start")
	text = e.Apply(text)
	tree = p.Parse(text, tree, tracking.SpanOf(e), true)
	assertSameTree(t, p, text, tree)

	last := tree.Root.Children[len(tree.Root.Children)-1]
	if last.Attr != "intro" {
		t.Errorf("second heading anchor = %q, want intro", last.Attr)
	}
}

func TestHashIgnoresPosition(t *testing.T) {
	p := NewParser(nil)
	a := p.ParseFull("para\n")
	b := p.ParseFull("\n\n\npara\n")
	if a.Root.Children[0].Hash() != b.Root.Children[0].Hash() {
		t.Error("identical paragraphs at different offsets hash differently")
	}
	c := p.ParseFull("other\n")
	if a.Root.Children[0].Hash() == c.Root.Children[0].Hash() {
		t.Error("different paragraphs hash the same")
	}
}

func TestLeavesInOrder(t *testing.T) {
	tree := NewParser(nil).ParseFull("# T\n\nalpha *beta*\n\n---\n")
	leaves := tree.Leaves()
	if len(leaves) == 0 {
		t.Fatal("no leaves")
	}
	for i := 1; i < len(leaves); i++ {
		if leaves[i].Start < leaves[i-1].Start {
			t.Errorf("leaf %d starts at %d before leaf %d at %d", i, leaves[i].Start, i-1, leaves[i-1].Start)
		}
	}
	if last := leaves[len(leaves)-1]; last.Kind != KindThematicBreak {
		t.Errorf("last leaf = %v, want thematic break", last.Kind)
	}
}

func TestKindNames(t *testing.T) {
	for k, name := range kindNames {
		got, ok := ParseKind(name)
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", name, got, ok)
		}
	}
	if !KindParagraph.IsBlock() || KindText.IsBlock() {
		t.Error("IsBlock mismatch")
	}
}
