// Package app wires the marksync components into a running application:
// configuration, the preview pipeline, file following, the terminal
// preview and the patch log.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/marksync/internal/config"
	"github.com/dshills/marksync/internal/event"
	"github.com/dshills/marksync/internal/event/events"
	"github.com/dshills/marksync/internal/logging"
	"github.com/dshills/marksync/internal/patchlog"
	"github.com/dshills/marksync/internal/pipeline"
	"github.com/dshills/marksync/internal/terminal"
	"github.com/dshills/marksync/internal/view"
)

const (
	source = "app"

	// DefaultWidth is the output width in print and replay mode.
	DefaultWidth = 80

	shutdownTimeout = 5 * time.Second
)

// Options configures application startup.
type Options struct {
	// ConfigPath is the configuration file. It is watched for changes
	// while the application runs.
	ConfigPath string

	// File is the markdown document to preview.
	File string

	// LogLevel overrides logging.level from the configuration.
	LogLevel string

	// LogFile receives log output. Without it logs go to stderr, or
	// nowhere in TUI mode.
	LogFile string

	// TUI shows the preview in the terminal. Otherwise the preview is
	// printed to Out when Run returns.
	TUI bool

	// Once renders the document a single time and returns instead of
	// following the file.
	Once bool

	// PatchLog records every published patch to this file.
	PatchLog string

	// Replay rebuilds the preview from a patch log instead of a document.
	Replay string

	// Width is the output width in print and replay mode.
	Width int

	// Out receives printed output. Defaults to os.Stdout.
	Out io.Writer

	// Screen replaces the terminal screen in TUI mode.
	Screen tcell.Screen
}

// Application is the main application.
type Application struct {
	opts Options
	log  *logging.Logger

	cmu sync.Mutex
	cfg *config.Config

	bus     event.Bus
	engine  *pipeline.Engine
	view    *view.View
	preview *terminal.Preview
	screen  tcell.Screen
	metrics *Metrics

	patchFile *os.File
	patchLog  *patchlog.Writer
	logFile   *os.File

	running  atomic.Bool
	shutdown sync.Once
}

// New creates an application. In replay mode only the configuration and
// logging are set up; Run reads the patch log.
func New(opts Options) (*Application, error) {
	if opts.File == "" && opts.Replay == "" {
		return nil, ErrNoInput
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	a := &Application{
		opts:    opts,
		view:    view.New(),
		metrics: NewMetrics(),
	}

	if err := a.bootstrap(); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

func (a *Application) bootstrap() error {
	cfg, err := config.Load(a.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	if a.opts.Replay != "" {
		return nil
	}

	a.bus = event.NewBus(event.WithLogger(a.log))
	if err := a.bus.Start(); err != nil {
		return &InitError{Component: "event bus", Err: err}
	}

	a.engine, err = pipeline.New(
		pipeline.WithConfig(cfg),
		pipeline.WithBus(a.bus),
		pipeline.WithLogger(a.log),
	)
	if err != nil {
		return &InitError{Component: "pipeline", Err: err}
	}

	if err := a.subscribe(); err != nil {
		return &InitError{Component: "subscriptions", Err: err}
	}
	if a.opts.PatchLog != "" {
		if err := a.initPatchLog(); err != nil {
			return &InitError{Component: "patch log", Err: err}
		}
	}
	if a.opts.TUI {
		if err := a.initTerminal(); err != nil {
			return &InitError{Component: "terminal", Err: err}
		}
	}

	if err := a.engine.LoadFile(a.opts.File); err != nil {
		return &InitError{Component: "document", Err: err}
	}
	return nil
}

func (a *Application) initLogging() error {
	level := a.cfg.Logging.Level
	if a.opts.LogLevel != "" {
		if !logging.ValidLevel(a.opts.LogLevel) {
			return fmt.Errorf("invalid log level %q", a.opts.LogLevel)
		}
		level = a.opts.LogLevel
	}

	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(level)
	switch {
	case a.opts.LogFile != "":
		f, err := os.OpenFile(a.opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		a.logFile = f
		lc.Output = f
	case a.opts.TUI:
		lc.Output = io.Discard
	}
	a.log = logging.New(lc)
	logging.Set(a.log)
	return nil
}

// subscribe wires the view and the metrics to the pipeline topics.
func (a *Application) subscribe() error {
	if !a.opts.TUI {
		// The terminal preview applies patches itself.
		_, err := a.bus.SubscribeFunc(events.TopicPreviewPatch, func(_ context.Context, ev any) error {
			if e, ok := ev.(event.Event[events.PatchPublished]); ok {
				a.view.Apply(e.Payload.Patch)
			}
			return nil
		}, event.WithPriority(event.PriorityCritical))
		if err != nil {
			return err
		}
	}

	_, err := a.bus.SubscribeFunc(events.TopicRenderCycle, func(_ context.Context, ev any) error {
		if e, ok := ev.(event.Event[events.RenderCycle]); ok {
			a.metrics.RecordCycle(e.Payload)
		}
		return nil
	}, event.WithPriority(event.PriorityLow))
	return err
}

func (a *Application) initPatchLog() error {
	f, err := os.Create(a.opts.PatchLog)
	if err != nil {
		return err
	}
	a.patchFile = f
	a.patchLog = patchlog.NewWriter(f)
	_, err = a.patchLog.Record(a.bus)
	return err
}

func (a *Application) initTerminal() error {
	theme, err := terminal.NewTheme(a.cfg.Terminal.Theme, a.cfg.Terminal.Accent)
	if err != nil {
		return err
	}

	screen := a.opts.Screen
	if screen == nil {
		if screen, err = tcell.NewScreen(); err != nil {
			return err
		}
	}
	if err := screen.Init(); err != nil {
		return err
	}
	a.screen = screen

	a.preview = terminal.New(screen, a.view,
		terminal.WithTheme(theme),
		terminal.WithWrap(a.cfg.Terminal.Wrap),
		terminal.WithLogger(a.log),
	)
	_, err = a.preview.Attach(a.bus)
	return err
}

// Config returns the configuration in effect.
func (a *Application) Config() *config.Config {
	a.cmu.Lock()
	defer a.cmu.Unlock()
	return a.cfg
}

// Engine returns the preview pipeline. It is nil in replay mode.
func (a *Application) Engine() *pipeline.Engine {
	return a.engine
}

// View returns the preview view.
func (a *Application) View() *view.View {
	return a.view
}

// Metrics returns the render metrics.
func (a *Application) Metrics() *Metrics {
	return a.metrics
}

// Run runs the application until ctx is done, the user quits the terminal
// preview or, with Once, the first render completes. The application is
// shut down when Run returns.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.Shutdown()

	if a.opts.Replay != "" {
		return a.replay()
	}
	if a.opts.Once {
		a.engine.Flush()
		return a.print()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.engine.Follow(gctx, a.opts.File)
	})
	if a.opts.ConfigPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, a.opts.ConfigPath, a.reconfigure, config.WithLogger(a.log))
		})
	}
	if a.preview != nil {
		g.Go(func() error {
			// Quitting the preview ends the run.
			defer cancel()
			return a.preview.Run(gctx, a.engine.OnPreviewScrolled)
		})
	}

	a.log.Info("previewing %s", a.opts.File)
	if err := g.Wait(); err != nil {
		return err
	}

	if a.preview == nil {
		a.engine.Flush()
		return a.print()
	}
	return nil
}

// reconfigure applies a reloaded configuration.
func (a *Application) reconfigure(cfg *config.Config) {
	a.cmu.Lock()
	prev := a.cfg
	a.cmu.Unlock()

	if err := a.engine.Reconfigure(cfg); err != nil {
		a.log.Warn("reconfigure: %v", err)
		return
	}
	if a.opts.LogLevel == "" {
		a.log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	}
	if a.preview != nil {
		if theme, err := terminal.NewTheme(cfg.Terminal.Theme, cfg.Terminal.Accent); err == nil {
			a.preview.SetAppearance(theme, cfg.Terminal.Wrap)
		}
	}

	a.cmu.Lock()
	a.cfg = cfg
	a.cmu.Unlock()

	changed := config.Changed(prev, cfg)
	ev := event.NewEvent(events.TopicConfigReloaded, events.ConfigReloaded{
		Path:    a.opts.ConfigPath,
		Changed: changed,
	}, source)
	if err := a.bus.Publish(context.Background(), ev); err != nil {
		a.log.Warn("publishing %s: %v", events.TopicConfigReloaded, err)
	}
}

// print writes the current preview to Out.
func (a *Application) print() error {
	wrap := a.Config().Terminal.Wrap
	for _, line := range terminal.Lines(a.view.Layout(), a.opts.Width, wrap) {
		if _, err := fmt.Fprintln(a.opts.Out, line); err != nil {
			return err
		}
	}
	return nil
}

// replay rebuilds the view from the patch log and prints it.
func (a *Application) replay() error {
	f, err := os.Open(a.opts.Replay)
	if err != nil {
		return fmt.Errorf("opening patch log: %w", err)
	}
	defer f.Close()

	st, err := patchlog.Replay(patchlog.NewReader(f), a.view)
	if err != nil {
		return fmt.Errorf("replaying %s: %w", a.opts.Replay, err)
	}
	a.log.WithFields(map[string]any{
		"records":  st.Records,
		"applied":  st.Applied,
		"skipped":  st.Skipped,
		"revision": st.Revision,
	}).Info("replayed %s over %v", a.opts.Replay, st.Span)
	return a.print()
}

// Shutdown stops every component. It is safe to call more than once.
func (a *Application) Shutdown() {
	a.shutdown.Do(a.cleanup)
}

func (a *Application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.engine != nil {
		if err := a.engine.Close(ctx); err != nil && a.log != nil {
			a.log.Warn("closing pipeline: %v", err)
		}
	}
	if a.bus != nil && a.bus.IsRunning() {
		// Drains queued patch log records.
		_ = a.bus.Stop(ctx)
	}
	if a.screen != nil {
		a.screen.Fini()
	}
	if a.patchFile != nil {
		if err := a.patchFile.Close(); err != nil && a.log != nil {
			a.log.Warn("closing patch log: %v", err)
		}
	}

	if a.log != nil && a.metrics.Snapshot().Cycles > 0 {
		m := a.metrics.Snapshot()
		a.log.Info("%d render cycles, %d ops, avg %v, max %v", m.Cycles, m.Ops, m.Avg, m.Max)
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
