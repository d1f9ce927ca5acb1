package terminal

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/marksync/internal/markdown"
	"github.com/dshills/marksync/internal/view"
)

// palette is the base colors of a theme.
type palette struct {
	bg, fg, dim, accent, code, err string
}

var palettes = map[string]palette{
	"dark": {
		bg: "#1c1c1c", fg: "#d0d0d0", dim: "#6c6c6c",
		accent: "#5fafff", code: "#afd787", err: "#ff5f5f",
	},
	"light": {
		bg: "#fafafa", fg: "#303030", dim: "#8a8a8a",
		accent: "#005fd7", code: "#5f8700", err: "#d70000",
	},
}

// Theme holds the styles of the preview.
type Theme struct {
	Name     string
	Base     tcell.Style
	Dim      tcell.Style
	Code     tcell.Style
	Quote    tcell.Style
	Meta     tcell.Style
	Error    tcell.Style
	Status   tcell.Style
	headings [6]tcell.Style
}

// NewTheme builds the named theme ("dark" or "light"). A non-empty accent
// overrides the theme's accent color. Heading levels fade from the accent
// toward the text color.
func NewTheme(name, accent string) (Theme, error) {
	p, ok := palettes[name]
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q", name)
	}
	if accent != "" {
		p.accent = accent
	}

	colors := make(map[string]colorful.Color, 6)
	for key, hex := range map[string]string{
		"bg": p.bg, "fg": p.fg, "dim": p.dim, "accent": p.accent, "code": p.code, "err": p.err,
	} {
		c, err := colorful.Hex(hex)
		if err != nil {
			return Theme{}, fmt.Errorf("theme %s: color %s: %w", name, key, err)
		}
		colors[key] = c
	}

	base := tcell.StyleDefault.Background(toTcell(colors["bg"])).Foreground(toTcell(colors["fg"]))
	t := Theme{
		Name:   name,
		Base:   base,
		Dim:    base.Foreground(toTcell(colors["dim"])),
		Code:   base.Foreground(toTcell(colors["code"])),
		Quote:  base.Foreground(toTcell(colors["fg"].BlendLab(colors["dim"], 0.5))).Italic(true),
		Meta:   base.Foreground(toTcell(colors["dim"])).Italic(true),
		Error:  base.Foreground(toTcell(colors["err"])).Bold(true),
		Status: tcell.StyleDefault.Background(toTcell(colors["accent"])).Foreground(toTcell(colors["bg"])),
	}
	for i := range t.headings {
		c := colors["accent"]
		if i > 0 {
			c = c.BlendLab(colors["fg"], float64(i)/float64(len(t.headings)))
		}
		t.headings[i] = base.Foreground(toTcell(c)).Bold(i < 2)
	}
	return t, nil
}

// Style returns the style of a display line.
func (t Theme) Style(kind markdown.Kind, level int) tcell.Style {
	switch kind {
	case markdown.KindHeading:
		if level < 1 {
			level = 1
		}
		return t.headings[min(level, len(t.headings))-1]
	case markdown.KindCodeBlock, markdown.KindFencedCode, markdown.KindHTMLBlock:
		return t.Code
	case markdown.KindFrontMatter:
		return t.Meta
	case markdown.KindThematicBreak:
		return t.Dim
	case markdown.KindError:
		return t.Error
	}
	return t.Base
}

func (t Theme) lineStyle(line view.Line) tcell.Style {
	switch line.Kind {
	case markdown.KindParagraph, markdown.KindTextBlock, markdown.KindListItem,
		markdown.KindDefinitionTerm, markdown.KindDefinitionDescription:
		if strings.HasPrefix(line.Prefix, "│") {
			return t.Quote
		}
	}
	return t.Style(line.Kind, line.Level)
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
