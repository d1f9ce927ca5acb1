package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/marksync/internal/logging"
)

// Default intervals.
const (
	DefaultDebounce    = 250 * time.Millisecond
	DefaultMaxCoalesce = 1000 * time.Millisecond
)

// State is the scheduler state.
type State int32

// Scheduler states.
const (
	StateIdle State = iota
	StatePending
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateRendering:
		return "rendering"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Cycle describes one render.
type Cycle struct {
	Seq           uint64
	Notifications int           // notifications merged into this cycle
	Forced        bool          // the max coalesce window elapsed
	Flushed       bool          // started by Flush
	Started       time.Time
	Waited        time.Duration // since the first pending notification
}

// RenderFunc performs one render cycle.
type RenderFunc func(Cycle)

// Stats holds scheduler counters.
type Stats struct {
	Notifications uint64
	Cycles        uint64
	Forced        uint64
	Flushed       uint64
	Coalesced     uint64 // notifications that did not start a cycle of their own
	Queued        uint64 // notifications received while rendering
}

// Scheduler coalesces notifications into serialized render cycles.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	render      RenderFunc
	debounce    time.Duration
	maxCoalesce time.Duration
	log         *logging.Logger

	state    State
	timer    *time.Timer
	seq      uint64 // invalidates stale timer callbacks
	first    time.Time
	last     time.Time
	notes    int
	queued   bool
	stopped  bool
	cycleSeq uint64

	stats Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithIntervals sets the debounce and max coalesce intervals. Non-positive
// values keep the defaults.
func WithIntervals(debounce, maxCoalesce time.Duration) Option {
	return func(s *Scheduler) {
		if debounce > 0 {
			s.debounce = debounce
		}
		if maxCoalesce > 0 {
			s.maxCoalesce = maxCoalesce
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// New creates a scheduler that calls render for each cycle.
func New(render RenderFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		render:      render,
		debounce:    DefaultDebounce,
		maxCoalesce: DefaultMaxCoalesce,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNull(s.log).WithComponent("scheduler")
	return s
}

// Notify records that the document changed. It never blocks on a render.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	now := time.Now()
	s.stats.Notifications++
	s.last = now

	switch s.state {
	case StateIdle:
		s.state = StatePending
		s.first = now
		s.notes = 1
		s.armLocked(now)
	case StatePending:
		s.notes++
		s.stats.Coalesced++
		s.armLocked(now)
	case StateRendering:
		if !s.queued {
			s.queued = true
			s.first = now
			s.notes = 0
		}
		s.notes++
		s.stats.Queued++
	}
}

// armLocked (re)starts the timer for the current pending period.
func (s *Scheduler) armLocked(now time.Time) {
	quiet := s.last.Add(s.debounce)
	deadline := s.first.Add(s.maxCoalesce)
	forced := !deadline.After(quiet)
	due := quiet
	if forced {
		due = deadline
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timer = time.AfterFunc(max(due.Sub(now), 0), func() {
		s.fire(seq, forced)
	})
}

func (s *Scheduler) fire(seq uint64, forced bool) {
	s.mu.Lock()
	if s.stopped || seq != s.seq || s.state != StatePending {
		s.mu.Unlock()
		return
	}
	c := s.beginLocked(forced, false)
	s.mu.Unlock()

	s.run(c)
}

// beginLocked moves from Pending to Rendering.
func (s *Scheduler) beginLocked(forced, flushed bool) Cycle {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
	s.cycleSeq++
	now := time.Now()
	c := Cycle{
		Seq:           s.cycleSeq,
		Notifications: s.notes,
		Forced:        forced,
		Flushed:       flushed,
		Started:       now,
		Waited:        now.Sub(s.first),
	}
	s.state = StateRendering
	s.notes = 0
	s.stats.Cycles++
	if forced {
		s.stats.Forced++
	}
	if flushed {
		s.stats.Flushed++
	}
	return c
}

func (s *Scheduler) run(c Cycle) {
	defer s.finish()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("render cycle %d panicked: %v", c.Seq, r)
		}
	}()
	s.log.Debug("cycle %d: %d notifications, forced=%v", c.Seq, c.Notifications, c.Forced)
	s.render(c)
}

// finish leaves Rendering and starts the queued period, if any.
func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
	if s.queued && !s.stopped {
		s.queued = false
		s.state = StatePending
		s.armLocked(time.Now())
	}
	s.cond.Broadcast()
}

// Flush renders now if a render is pending, waiting for an in-flight
// render first. It reports whether a render ran.
func (s *Scheduler) Flush() bool {
	s.mu.Lock()
	for s.state == StateRendering {
		s.cond.Wait()
	}
	if s.stopped || s.state != StatePending {
		s.mu.Unlock()
		return false
	}
	c := s.beginLocked(false, true)
	s.mu.Unlock()

	s.run(c)
	return true
}

// SetIntervals changes the intervals. A pending timer is re-armed with the
// new values.
func (s *Scheduler) SetIntervals(debounce, maxCoalesce time.Duration) error {
	if debounce <= 0 || maxCoalesce <= 0 {
		return fmt.Errorf("debounce %v, max coalesce %v: %w", debounce, maxCoalesce, ErrInvalidInterval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	s.debounce, s.maxCoalesce = debounce, maxCoalesce
	if s.state == StatePending {
		s.armLocked(time.Now())
	}
	return nil
}

// Intervals returns the current debounce and max coalesce intervals.
func (s *Scheduler) Intervals() (debounce, maxCoalesce time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce, s.maxCoalesce
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Stop cancels pending renders and waits for an in-flight render to
// return or ctx to be done. Pending notifications are dropped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
	s.queued = false
	if s.state == StatePending {
		s.state = StateIdle
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.state == StateRendering {
			s.cond.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
