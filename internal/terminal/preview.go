package terminal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/marksync/internal/event"
	"github.com/dshills/marksync/internal/event/events"
	"github.com/dshills/marksync/internal/event/topic"
	"github.com/dshills/marksync/internal/logging"
	"github.com/dshills/marksync/internal/markdown"
	"github.com/dshills/marksync/internal/view"
)

// row is one screen row of the preview.
type row struct {
	text  string
	node  markdown.NodeID
	style tcell.Style
}

// Preview draws a view on a tcell screen. All methods are safe for
// concurrent use.
type Preview struct {
	mu     sync.Mutex
	screen tcell.Screen
	view   *view.View
	theme  Theme
	wrap   bool
	log    *logging.Logger

	layout view.Layout
	rows   []row
	first  []int // first row of each layout line
	top    int
	status string
}

// Option configures a Preview.
type Option func(*Preview)

// WithTheme sets the theme.
func WithTheme(t Theme) Option {
	return func(p *Preview) {
		p.theme = t
	}
}

// WithWrap enables or disables line wrapping.
func WithWrap(wrap bool) Option {
	return func(p *Preview) {
		p.wrap = wrap
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Preview) {
		p.log = l
	}
}

// New creates a preview of v on an initialized screen.
func New(screen tcell.Screen, v *view.View, opts ...Option) *Preview {
	theme, _ := NewTheme("dark", "")
	p := &Preview{
		screen: screen,
		view:   v,
		theme:  theme,
		wrap:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrNull(p.log).WithComponent("terminal")
	return p
}

// Lines flattens a layout into text rows of at most width cells.
func Lines(l view.Layout, width int, wrapLines bool) []string {
	var out []string
	for _, line := range l.Lines {
		out = append(out, lineRows(line, width, wrapLines)...)
	}
	return out
}

func lineRows(line view.Line, width int, wrapLines bool) []string {
	if !wrapLines {
		return []string{clip(line.Prefix+line.Text, width)}
	}
	// Continuation rows keep the quote bars and align with the text.
	indent := strings.Map(func(r rune) rune {
		if r == '│' {
			return r
		}
		return ' '
	}, line.Prefix)
	rows := wrap(line.Text, max(width-uniseg.StringWidth(line.Prefix), 1))
	for i := range rows {
		if i == 0 {
			rows[i] = line.Prefix + rows[i]
		} else {
			rows[i] = indent + rows[i]
		}
	}
	return rows
}

// SetAppearance changes the theme and wrapping and redraws.
func (p *Preview) SetAppearance(t Theme, wrapLines bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = t
	p.wrap = wrapLines
	p.relayoutLocked()
	p.drawLocked()
}

// Refresh lays the view out again and redraws.
func (p *Preview) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.relayoutLocked()
	p.drawLocked()
}

func (p *Preview) relayoutLocked() {
	var anchor markdown.NodeID
	if p.top < len(p.rows) {
		anchor = p.rows[p.top].node
	}

	width, _ := p.screen.Size()
	p.layout = p.view.Layout()
	p.rows = p.rows[:0]
	p.first = p.first[:0]
	for _, line := range p.layout.Lines {
		p.first = append(p.first, len(p.rows))
		style := p.theme.lineStyle(line)
		for _, text := range lineRows(line, width, p.wrap) {
			p.rows = append(p.rows, row{text: text, node: line.Node, style: style})
		}
	}

	// Keep the node that was at the top in place.
	if anchor != 0 {
		if i, ok := p.layout.LineOf(anchor); ok {
			p.top = p.first[i]
		}
	}
	p.clampLocked()
}

func (p *Preview) pageLocked() int {
	_, height := p.screen.Size()
	return max(height-1, 1) // last row is the status line
}

func (p *Preview) clampLocked() {
	p.top = min(p.top, len(p.rows)-p.pageLocked())
	p.top = max(p.top, 0)
}

func (p *Preview) drawLocked() {
	width, height := p.screen.Size()
	p.screen.Fill(' ', p.theme.Base)

	page := p.pageLocked()
	for y := 0; y < page && p.top+y < len(p.rows); y++ {
		r := p.rows[p.top+y]
		p.drawText(0, y, width, r.text, r.style)
	}

	if height > 1 {
		status := p.status
		if len(p.rows) > page {
			status = fmt.Sprintf("%s  %d%%", status, 100*(p.top+page)/len(p.rows))
		}
		for x := 0; x < width; x++ {
			p.screen.SetContent(x, height-1, ' ', nil, p.theme.Status)
		}
		p.drawText(1, height-1, width-1, strings.TrimSpace(status), p.theme.Status)
	}
	p.screen.Show()
}

func (p *Preview) drawText(x, y, width int, s string, style tcell.Style) {
	for _, c := range clusters(s) {
		if c.width == 0 {
			continue
		}
		if x+c.width > width {
			return
		}
		runes := []rune(c.text)
		p.screen.SetContent(x, y, runes[0], runes[1:], style)
		x += c.width
	}
}

// ScrollTo scrolls so that the node is on the top row. It reports whether
// the node is displayed.
func (p *Preview) ScrollTo(id markdown.NodeID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, ok := p.layout.LineOf(id)
	if !ok {
		return false
	}
	p.top = p.first[i]
	p.clampLocked()
	p.drawLocked()
	return true
}

// ScrollBy scrolls by delta rows.
func (p *Preview) ScrollBy(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.top += delta
	p.clampLocked()
	p.drawLocked()
}

// TopNode returns the node shown on the top row.
func (p *Preview) TopNode() (markdown.NodeID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.top >= len(p.rows) {
		return 0, false
	}
	return p.rows[p.top].node, p.rows[p.top].node != 0
}

// Rows returns the text of the rows currently on screen, status excluded.
func (p *Preview) Rows() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	page := p.pageLocked()
	var out []string
	for y := 0; y < page && p.top+y < len(p.rows); y++ {
		out = append(out, p.rows[p.top+y].text)
	}
	return out
}

// SetStatus sets the status line text.
func (p *Preview) SetStatus(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
	p.drawLocked()
}

// Attach subscribes the preview to the pipeline topics on bus: patches are
// applied to the view, scroll requests move the preview and render cycles
// update the status line.
func (p *Preview) Attach(bus event.Bus) ([]event.Subscription, error) {
	handlers := []struct {
		topic    topic.Topic
		priority event.Priority
		fn       event.HandlerFunc
	}{
		{events.TopicPreviewPatch, event.PriorityCritical, func(_ context.Context, ev any) error {
			e, ok := ev.(event.Event[events.PatchPublished])
			if !ok {
				return nil
			}
			res := p.view.Apply(e.Payload.Patch)
			p.log.Debug("patch %d: %d applied, %d skipped", e.Payload.Patch.Seq, res.Applied, res.Skipped)
			p.Refresh()
			return nil
		}},
		{events.TopicScrollPreview, event.PriorityHigh, func(_ context.Context, ev any) error {
			if e, ok := ev.(event.Event[events.ScrollPreview]); ok {
				p.ScrollTo(e.Payload.Node)
			}
			return nil
		}},
		{events.TopicRenderCycle, event.PriorityLow, func(_ context.Context, ev any) error {
			if e, ok := ev.(event.Event[events.RenderCycle]); ok {
				c := e.Payload
				p.SetStatus(fmt.Sprintf("rev %d · %d ops · %d/%d sections reparsed · %v",
					c.Revision, c.Ops, c.Reparsed, c.Reparsed+c.Reused, c.Duration.Round(10*time.Microsecond)))
			}
			return nil
		}},
	}

	var subs []event.Subscription
	for _, h := range handlers {
		sub, err := bus.SubscribeFunc(h.topic, h.fn, event.WithPriority(h.priority))
		if err != nil {
			for _, s := range subs {
				_ = bus.Unsubscribe(s)
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Run handles terminal input until the user quits or ctx is done.
// onScroll is called with the top node after the user scrolls.
func (p *Preview) Run(ctx context.Context, onScroll func(markdown.NodeID)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = p.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	p.Refresh()
	for {
		ev := p.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			p.screen.Sync()
			p.Refresh()
		case *tcell.EventKey:
			delta, quit := p.keyDelta(ev)
			if quit {
				return nil
			}
			if delta == 0 {
				continue
			}
			p.ScrollBy(delta)
			if id, ok := p.TopNode(); ok && onScroll != nil {
				onScroll(id)
			}
		}
	}
}

func (p *Preview) keyDelta(ev *tcell.EventKey) (int, bool) {
	p.mu.Lock()
	page := p.pageLocked()
	total := len(p.rows)
	p.mu.Unlock()

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return 0, true
	case tcell.KeyUp:
		return -1, false
	case tcell.KeyDown:
		return 1, false
	case tcell.KeyPgUp:
		return -page, false
	case tcell.KeyPgDn:
		return page, false
	case tcell.KeyHome:
		return -total, false
	case tcell.KeyEnd:
		return total, false
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return 0, true
		case 'k':
			return -1, false
		case 'j':
			return 1, false
		case ' ':
			return page, false
		case 'g':
			return -total, false
		case 'G':
			return total, false
		}
	}
	return 0, false
}
