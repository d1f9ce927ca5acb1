package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/marksync/internal/config"
	"github.com/dshills/marksync/internal/diff"
	"github.com/dshills/marksync/internal/engine"
	"github.com/dshills/marksync/internal/engine/tracking"
	"github.com/dshills/marksync/internal/event"
	"github.com/dshills/marksync/internal/event/events"
	"github.com/dshills/marksync/internal/event/topic"
	"github.com/dshills/marksync/internal/logging"
	"github.com/dshills/marksync/internal/markdown"
	"github.com/dshills/marksync/internal/scheduler"
	"github.com/dshills/marksync/internal/scrollsync"
)

const source = "pipeline"

// Stats holds engine counters and the counters of its components.
type Stats struct {
	Edits       uint64
	Rejected    uint64 // edits that failed validation
	Cycles      uint64
	Patches     uint64 // cycles that published a non-empty patch
	ParseErrors uint64
	PublishErrs uint64

	Scheduler scheduler.Stats
	Diff      diff.Stats
	Scroll    scrollsync.Stats
}

// Engine is the live preview pipeline for one document.
type Engine struct {
	cfg     *config.Config
	initial string
	log     *logging.Logger

	doc     *engine.Document
	bus     event.Bus
	ownsBus bool
	sched   *scheduler.Scheduler
	updater *diff.Updater
	scroll  *scrollsync.Synchronizer

	cmu       sync.Mutex // serializes Reconfigure
	pmu       sync.RWMutex
	parser    *markdown.Parser
	forceFull atomic.Bool // the next cycle parses from scratch

	// tree and revision are written by the render goroutine only.
	tmu      sync.RWMutex
	tree     *markdown.Tree
	revision engine.Revision

	closed atomic.Bool

	edits    atomic.Uint64
	rejected atomic.Uint64
	cycles   atomic.Uint64
	patches  atomic.Uint64
	perrs    atomic.Uint64
	pubErrs  atomic.Uint64
}

// New creates an engine. When no bus is supplied the engine starts its
// own and stops it on Close.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg == nil {
		e.cfg = config.Default()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	e.log = logging.OrNull(e.log).WithComponent(source)

	if e.bus == nil {
		e.bus = event.NewBus(event.WithLogger(e.log))
		if err := e.bus.Start(); err != nil {
			return nil, err
		}
		e.ownsBus = true
	}

	e.doc = engine.NewDocument()
	e.parser = markdown.NewParser(e.cfg.Preview.ParserExtensions, markdown.WithLogger(e.log))
	e.updater = diff.NewUpdater(
		diff.WithDivergenceThreshold(e.cfg.Preview.DivergenceThreshold),
		diff.WithLogger(e.log),
	)
	e.scroll = scrollsync.New(
		scrollsync.WithPreviewHandler(e.scrollPreview),
		scrollsync.WithEditorHandler(e.scrollEditor),
		scrollsync.WithLogger(e.log),
	)
	e.sched = scheduler.New(e.render,
		scheduler.WithIntervals(e.cfg.Debounce(), e.cfg.MaxCoalesce()),
		scheduler.WithLogger(e.log),
	)

	if e.initial != "" {
		if err := e.Load(e.initial); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Bus returns the bus the engine publishes to.
func (e *Engine) Bus() event.Bus {
	return e.bus
}

// Subscribe registers fn for a topic pattern on the engine's bus.
func (e *Engine) Subscribe(pattern topic.Topic, fn event.HandlerFunc, opts ...event.SubscriptionOption) (event.Subscription, error) {
	return e.bus.SubscribeFunc(pattern, fn, opts...)
}

// Apply applies an edit to the document and schedules a render. It never
// waits for rendering.
func (e *Engine) Apply(edit tracking.Edit) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := e.doc.Apply(edit); err != nil {
		e.rejected.Add(1)
		return err
	}
	e.edits.Add(1)
	e.sched.Notify()
	return nil
}

// Load replaces the whole document text.
func (e *Engine) Load(text string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := e.doc.Replace(text); err != nil {
		return err
	}
	e.edits.Add(1)
	e.sched.Notify()
	return nil
}

// Text returns the current document text.
func (e *Engine) Text() string {
	return e.doc.Text()
}

// Document returns the engine's document.
func (e *Engine) Document() *engine.Document {
	return e.doc
}

// Tree returns the tree of the last render and the revision it shows, or
// nil before the first render.
func (e *Engine) Tree() (*markdown.Tree, engine.Revision) {
	e.tmu.RLock()
	defer e.tmu.RUnlock()
	return e.tree, e.revision
}

// Flush renders pending edits now. It reports whether a cycle ran.
func (e *Engine) Flush() bool {
	return e.sched.Flush()
}

// MapToView returns the rendered node shown for a buffer offset.
func (e *Engine) MapToView(offset int) (markdown.NodeID, bool) {
	return e.scroll.MapToView(offset)
}

// MapToBuffer returns the buffer range of a rendered node.
func (e *Engine) MapToBuffer(id markdown.NodeID) (scrollsync.Range, bool) {
	return e.scroll.MapToBuffer(id)
}

// OnCaretMoved publishes a scroll.preview request for the node under the
// caret.
func (e *Engine) OnCaretMoved(offset int) {
	e.scroll.OnCaretMoved(offset)
}

// OnPreviewScrolled publishes a scroll.editor request for the node at the
// top of the preview.
func (e *Engine) OnPreviewScrolled(id markdown.NodeID) {
	e.scroll.OnPreviewScrolled(id)
}

func (e *Engine) scrollPreview(id markdown.NodeID, offset int) {
	e.publish(context.Background(), event.NewEvent(events.TopicScrollPreview,
		events.ScrollPreview{Node: id, Offset: offset}, source))
}

func (e *Engine) scrollEditor(id markdown.NodeID, r scrollsync.Range) {
	e.publish(context.Background(), event.NewEvent(events.TopicScrollEditor,
		events.ScrollEditor{Node: id, Range: r}, source))
}

// Reconfigure applies a new configuration. Interval and threshold changes
// take effect for the next cycle; a change of parser extensions re-renders
// the document from scratch.
func (e *Engine) Reconfigure(cfg *config.Config) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	e.cmu.Lock()
	defer e.cmu.Unlock()

	if err := e.sched.SetIntervals(cfg.Debounce(), cfg.MaxCoalesce()); err != nil {
		return err
	}
	e.updater.SetThreshold(cfg.Preview.DivergenceThreshold)

	if !slices.Equal(cfg.Preview.ParserExtensions, e.cfg.Preview.ParserExtensions) {
		p := markdown.NewParser(cfg.Preview.ParserExtensions, markdown.WithLogger(e.log))
		e.pmu.Lock()
		e.parser = p
		e.pmu.Unlock()
		e.forceFull.Store(true)
		e.sched.Notify()
		e.log.Info("parser extensions now %v", p.Extensions())
	}
	e.cfg = cfg
	return nil
}

func (e *Engine) currentParser() *markdown.Parser {
	e.pmu.RLock()
	defer e.pmu.RUnlock()
	return e.parser
}

// render is one render cycle. It runs on the scheduler goroutine.
func (e *Engine) render(c scheduler.Cycle) {
	start := time.Now()
	snap := e.doc.Take()
	full := e.forceFull.Swap(false)

	// A failed cycle has consumed the dirty span, so the next one parses
	// from scratch. Once a patch may have reached the view the tree is
	// dropped too, which makes the next patch replace the root.
	diffed := false
	defer func() {
		if r := recover(); r != nil {
			e.forceFull.Store(true)
			if diffed {
				e.tmu.Lock()
				e.tree = nil
				e.tmu.Unlock()
			}
			e.log.Error("render cycle %d at revision %d failed: %v", c.Seq, snap.Revision, r)
			e.sched.Notify()
		}
	}()

	e.tmu.RLock()
	prior := e.tree
	e.tmu.RUnlock()

	if !snap.HasSpan && !full && prior != nil {
		return
	}

	parsePrior := prior
	if full {
		parsePrior = nil
	}
	next := e.currentParser().Parse(snap.Text, parsePrior, snap.Span, snap.HasSpan)
	patch := e.updater.Diff(prior, next)
	diffed = true

	ctx := context.Background()
	correlation := uuid.NewString()
	rev := uint64(snap.Revision)

	// The patch is applied by synchronous subscribers before the tree
	// becomes current, so the next cycle diffs against what they hold.
	if !patch.Empty() {
		e.publish(ctx, event.NewEvent(events.TopicPreviewPatch,
			events.PatchPublished{Patch: patch, Revision: rev}, source).WithCorrelation(correlation))
		e.patches.Add(1)
	}
	e.publish(ctx, event.NewEvent(events.TopicPreviewHighlight,
		events.HighlightUpdated{Spans: markdown.Highlight(next), Revision: rev}, source).WithCorrelation(correlation))

	e.scroll.Rebuild(next)
	e.tmu.Lock()
	e.tree = next
	e.revision = snap.Revision
	e.tmu.Unlock()

	e.cycles.Add(1)
	if n := len(next.Errors); n > 0 {
		e.perrs.Add(uint64(n))
		for _, perr := range next.Errors {
			e.log.Warn("%v", perr)
		}
	}

	summary := events.RenderCycle{
		Seq:           c.Seq,
		Revision:      rev,
		Notifications: c.Notifications,
		Forced:        c.Forced,
		Reparsed:      next.Reparsed,
		Reused:        next.Reused,
		Ops:           len(patch.Ops),
		Fallbacks:     patch.Fallbacks,
		ParseErrors:   len(next.Errors),
		Duration:      time.Since(start),
	}
	e.publish(ctx, event.NewEvent(events.TopicRenderCycle, summary, source).WithCorrelation(correlation))

	if e.log.Enabled(logging.LevelDebug) {
		e.log.WithFields(map[string]any{
			"seq":      c.Seq,
			"rev":      rev,
			"edits":    snap.Edits,
			"ops":      len(patch.Ops),
			"reparsed": next.Reparsed,
			"reused":   next.Reused,
			"took":     summary.Duration,
		}).Debug("render cycle")
	}
}

// publish sends an event and logs failures. Subscriber errors never stop
// a render cycle.
func (e *Engine) publish(ctx context.Context, ev event.TopicProvider) {
	if err := e.bus.Publish(ctx, ev); err != nil {
		e.pubErrs.Add(1)
		if !errors.Is(err, event.ErrBusNotRunning) {
			e.log.Warn("publishing %s: %v", ev.EventTopic(), err)
		}
	}
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Edits:       e.edits.Load(),
		Rejected:    e.rejected.Load(),
		Cycles:      e.cycles.Load(),
		Patches:     e.patches.Load(),
		ParseErrors: e.perrs.Load(),
		PublishErrs: e.pubErrs.Load(),
		Scheduler:   e.sched.Stats(),
		Diff:        e.updater.Stats(),
		Scroll:      e.scroll.Stats(),
	}
}

// Close stops accepting edits and waits for an in-flight render. Pending
// edits that were not rendered yet are dropped; call Flush first to keep
// them.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	err := e.sched.Stop(ctx)
	if e.ownsBus {
		if berr := e.bus.Stop(ctx); berr != nil && !errors.Is(berr, event.ErrBusNotRunning) {
			err = errors.Join(err, berr)
		}
	}
	return err
}
