package markdown

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Parser extension identifiers.
const (
	ExtGFM           = "gfm"
	ExtTables        = "tables"
	ExtStrikethrough = "strikethrough"
	ExtTaskList      = "tasklist"
	ExtLinkify       = "linkify"
	ExtFootnotes     = "footnotes"
	ExtDefinitions   = "definitions"
	ExtTypographer   = "typographer"
	ExtFrontMatter   = "frontmatter"
	ExtAnchorLink    = "anchorlink"
)

// Extensions of the desktop editor that have no goldmark implementation
// here. They are recognized so configurations written for it load, and are
// reported by Parser.Unsupported.
const (
	ExtWikiLink     = "wikilink"
	ExtTOC          = "toc"
	ExtAbbreviation = "abbreviation"
	ExtIns          = "ins"
	ExtAside        = "aside"
)

var unsupportedExtensions = map[string]bool{
	ExtWikiLink:     true,
	ExtTOC:          true,
	ExtAbbreviation: true,
	ExtIns:          true,
	ExtAside:        true,
}

// DefaultExtensions is the extension set used when none is configured.
var DefaultExtensions = []string{ExtGFM, ExtFootnotes, ExtDefinitions, ExtFrontMatter, ExtAnchorLink}

// extensionAliases maps alternative names to extension identifiers.
var extensionAliases = map[string]string{
	"table":             ExtTables,
	"strike":            ExtStrikethrough,
	"tasks":             ExtTaskList,
	"autolink":          ExtLinkify,
	"footnote":          ExtFootnotes,
	"definition":        ExtDefinitions,
	"deflist":           ExtDefinitions,
	"yaml-front-matter": ExtFrontMatter,
	"front-matter":      ExtFrontMatter,
	"anchors":           ExtAnchorLink,
}

// KnownExtensions returns the recognized extension identifiers.
func KnownExtensions() []string {
	return []string{
		ExtGFM, ExtTables, ExtStrikethrough, ExtTaskList, ExtLinkify,
		ExtFootnotes, ExtDefinitions, ExtTypographer, ExtFrontMatter, ExtAnchorLink,
	}
}

type extensionSet struct {
	tables        bool
	strikethrough bool
	tasklist      bool
	linkify       bool
	footnotes     bool
	definitions   bool
	typographer   bool
	frontMatter   bool
	anchorLink    bool
}

// parseExtensions resolves identifiers into a set. Unknown and unsupported
// identifiers are returned sorted and otherwise ignored.
func parseExtensions(ids []string) (extensionSet, []string, []string) {
	var set extensionSet
	var unknown, unsupported []string
	for _, raw := range ids {
		id := strings.ToLower(strings.TrimSpace(raw))
		if alias, ok := extensionAliases[id]; ok {
			id = alias
		}
		switch id {
		case "":
		case ExtGFM:
			set.tables = true
			set.strikethrough = true
			set.tasklist = true
			set.linkify = true
		case ExtTables:
			set.tables = true
		case ExtStrikethrough:
			set.strikethrough = true
		case ExtTaskList:
			set.tasklist = true
		case ExtLinkify:
			set.linkify = true
		case ExtFootnotes:
			set.footnotes = true
		case ExtDefinitions:
			set.definitions = true
		case ExtTypographer:
			set.typographer = true
		case ExtFrontMatter:
			set.frontMatter = true
		case ExtAnchorLink:
			set.anchorLink = true
		default:
			if unsupportedExtensions[id] {
				unsupported = append(unsupported, id)
			} else {
				unknown = append(unknown, raw)
			}
		}
	}
	sort.Strings(unknown)
	sort.Strings(unsupported)
	return set, unknown, unsupported
}

// names returns the enabled extensions, without the gfm shorthand.
func (s extensionSet) names() []string {
	var names []string
	add := func(on bool, name string) {
		if on {
			names = append(names, name)
		}
	}
	add(s.tables, ExtTables)
	add(s.strikethrough, ExtStrikethrough)
	add(s.tasklist, ExtTaskList)
	add(s.linkify, ExtLinkify)
	add(s.footnotes, ExtFootnotes)
	add(s.definitions, ExtDefinitions)
	add(s.typographer, ExtTypographer)
	add(s.frontMatter, ExtFrontMatter)
	add(s.anchorLink, ExtAnchorLink)
	return names
}

// key identifies the set. Trees parsed under different keys are never
// reused for each other.
func (s extensionSet) key() string {
	return strings.Join(s.names(), ",")
}

// markdown builds the goldmark instance for the set. Front matter and
// anchors are handled by the adapter itself.
func (s extensionSet) markdown() goldmark.Markdown {
	var exts []goldmark.Extender
	if s.tables {
		exts = append(exts, extension.Table)
	}
	if s.strikethrough {
		exts = append(exts, extension.Strikethrough)
	}
	if s.tasklist {
		exts = append(exts, extension.TaskList)
	}
	if s.linkify {
		exts = append(exts, extension.Linkify)
	}
	if s.footnotes {
		exts = append(exts, extension.Footnote)
	}
	if s.definitions {
		exts = append(exts, extension.DefinitionList)
	}
	if s.typographer {
		exts = append(exts, extension.Typographer)
	}
	return goldmark.New(goldmark.WithExtensions(exts...))
}
