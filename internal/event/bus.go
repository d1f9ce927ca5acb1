package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/marksync/internal/event/topic"
	"github.com/dshills/marksync/internal/logging"
)

// Bus is the event bus interface.
type Bus interface {
	// Publish delivers event to every matching subscription: synchronous
	// handlers run before Publish returns, asynchronous ones are queued.
	// Errors from synchronous handlers are joined and returned.
	Publish(ctx context.Context, event any) error

	Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error

	Start() error
	Stop(ctx context.Context) error

	Stats() Stats
	IsRunning() bool
}

type job struct {
	ctx   context.Context
	event any
	sub   *subscription
}

// bus is the default Bus implementation.
type bus struct {
	config busConfig
	log    *logging.Logger

	mu   sync.RWMutex
	subs []*subscription // ordered by priority, then subscription order

	// qmu guards queue against Stop closing it during a send.
	qmu     sync.RWMutex
	queue   chan job
	done    chan struct{}
	running atomic.Bool

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	errs      atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates an event bus. Start must be called before publishing.
func NewBus(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &bus{
		config: config,
		log:    logging.OrNull(config.log).WithComponent("event"),
	}
}

// Start starts the async worker.
func (b *bus) Start() error {
	b.qmu.Lock()
	defer b.qmu.Unlock()

	if b.running.Load() {
		return ErrBusAlreadyRunning
	}
	b.queue = make(chan job, b.config.asyncQueueSize)
	b.done = make(chan struct{})
	b.running.Store(true)
	go b.worker(b.queue, b.done)
	return nil
}

// Stop stops accepting events and waits for queued async events to be
// delivered or ctx to be done.
func (b *bus) Stop(ctx context.Context) error {
	b.qmu.Lock()
	if !b.running.Swap(false) {
		b.qmu.Unlock()
		return ErrBusNotRunning
	}
	close(b.queue)
	done := b.done
	b.qmu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *bus) worker(queue <-chan job, done chan<- struct{}) {
	defer close(done)
	for j := range queue {
		_ = b.dispatch(j.ctx, j.sub, j.event)
	}
}

// IsRunning reports whether the bus is running.
func (b *bus) IsRunning() bool {
	return b.running.Load()
}

// Publish delivers an event.
func (b *bus) Publish(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}
	tp, ok := event.(TopicProvider)
	if !ok || !tp.EventTopic().IsValid() {
		return ErrInvalidEvent
	}
	t := tp.EventTopic()
	b.published.Add(1)

	var errs []error
	for _, sub := range b.match(t) {
		if !sub.shouldDeliver(event) {
			continue
		}
		if sub.config.DeliveryMode == DeliveryAsync {
			if err := b.enqueue(ctx, sub, event); err != nil {
				b.dropped.Add(1)
				b.log.Warn("dropped %s for subscription %s: %v", t, sub.id, err)
			}
			continue
		}
		if err := b.dispatch(ctx, sub, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *bus) enqueue(ctx context.Context, sub *subscription, event any) error {
	b.qmu.RLock()
	defer b.qmu.RUnlock()

	if !b.running.Load() {
		return ErrBusNotRunning
	}
	select {
	case b.queue <- job{ctx: ctx, event: event, sub: sub}:
		return nil
	default:
		return ErrQueueFull
	}
}

// dispatch runs one handler, converting panics to errors.
func (b *bus) dispatch(ctx context.Context, sub *subscription, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			err = &PanicError{SubscriptionID: sub.id, Topic: sub.topic.String(), Value: r}
		}
		if err != nil {
			b.report(err)
			return
		}
		b.delivered.Add(1)
		if sub.config.Once {
			_ = b.Unsubscribe(sub)
		}
	}()

	if hErr := sub.handler.Handle(ctx, event); hErr != nil {
		b.errs.Add(1)
		return &HandlerError{SubscriptionID: sub.id, Topic: sub.topic.String(), Err: hErr}
	}
	return nil
}

func (b *bus) report(err error) {
	b.log.Error("%v", err)
	if b.config.errorHandler != nil {
		b.config.errorHandler(err)
	}
}

func (b *bus) match(t topic.Topic) []*subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*subscription
	for _, sub := range b.subs {
		if t.Matches(sub.topic) {
			out = append(out, sub)
		}
	}
	return out
}

// Subscribe registers a handler for a topic pattern.
func (b *bus) Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := newSubscription(generateID(), pattern, handler, opts...)
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	sort.SliceStable(b.subs, func(i, j int) bool {
		return b.subs[i].config.Priority < b.subs[j].config.Priority
	})
	b.mu.Unlock()
	return sub, nil
}

// SubscribeFunc registers a function handler.
func (b *bus) SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, fn, opts...)
}

// Unsubscribe cancels and removes a subscription.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == sub.ID() {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Stats returns a snapshot of the counters.
func (b *bus) Stats() Stats {
	b.mu.RLock()
	active := 0
	for _, s := range b.subs {
		if s.IsActive() {
			active++
		}
	}
	b.mu.RUnlock()

	b.qmu.RLock()
	depth := len(b.queue)
	b.qmu.RUnlock()

	return Stats{
		EventsPublished:   b.published.Load(),
		EventsDelivered:   b.delivered.Load(),
		EventsDropped:     b.dropped.Load(),
		HandlerErrors:     b.errs.Load(),
		HandlerPanics:     b.panics.Load(),
		ActiveSubscribers: active,
		QueueDepth:        depth,
	}
}
