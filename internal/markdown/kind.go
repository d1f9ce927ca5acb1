package markdown

// Kind discriminates node variants. The set is closed: every node produced
// by the parser has one of the kinds below.
type Kind uint8

// Block kinds.
const (
	KindDocument Kind = iota
	KindFrontMatter
	KindHeading
	KindParagraph
	KindTextBlock
	KindBlockquote
	KindList
	KindListItem
	KindCodeBlock
	KindFencedCode
	KindHTMLBlock
	KindThematicBreak
	KindTable
	KindTableHeader
	KindTableRow
	KindTableCell
	KindDefinitionList
	KindDefinitionTerm
	KindDefinitionDescription
	KindFootnoteList
	KindFootnote
	KindError
)

// Inline kinds.
const (
	KindText Kind = iota + 32
	KindString
	KindCodeSpan
	KindEmphasis
	KindStrong
	KindStrikethrough
	KindLink
	KindImage
	KindAutoLink
	KindRawHTML
	KindTaskCheckBox
	KindFootnoteRef
	KindFootnoteBacklink
)

var kindNames = map[Kind]string{
	KindDocument:              "document",
	KindFrontMatter:           "front_matter",
	KindHeading:               "heading",
	KindParagraph:             "paragraph",
	KindTextBlock:             "text_block",
	KindBlockquote:            "blockquote",
	KindList:                  "list",
	KindListItem:              "list_item",
	KindCodeBlock:             "code_block",
	KindFencedCode:            "fenced_code",
	KindHTMLBlock:             "html_block",
	KindThematicBreak:         "thematic_break",
	KindTable:                 "table",
	KindTableHeader:           "table_header",
	KindTableRow:              "table_row",
	KindTableCell:             "table_cell",
	KindDefinitionList:        "definition_list",
	KindDefinitionTerm:        "definition_term",
	KindDefinitionDescription: "definition_description",
	KindFootnoteList:          "footnote_list",
	KindFootnote:              "footnote",
	KindError:                 "error",
	KindText:                  "text",
	KindString:                "string",
	KindCodeSpan:              "code_span",
	KindEmphasis:              "emphasis",
	KindStrong:                "strong",
	KindStrikethrough:         "strikethrough",
	KindLink:                  "link",
	KindImage:                 "image",
	KindAutoLink:              "autolink",
	KindRawHTML:               "raw_html",
	KindTaskCheckBox:          "task_checkbox",
	KindFootnoteRef:           "footnote_ref",
	KindFootnoteBacklink:      "footnote_backlink",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the kind's name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsBlock reports whether the kind is a block kind.
func (k Kind) IsBlock() bool {
	return k < KindText
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}
