package event

import (
	"sync/atomic"

	"github.com/dshills/marksync/internal/event/topic"
)

// Subscription is a registered handler.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Topic returns the subscribed topic pattern.
	Topic() topic.Topic

	// IsActive reports whether the subscription receives events.
	IsActive() bool

	// Pause temporarily stops delivery.
	Pause()

	// Resume restarts delivery after a pause.
	Resume()

	// Cancel permanently cancels the subscription.
	Cancel()
}

// SubscriptionConfig configures a subscription.
type SubscriptionConfig struct {
	Priority     Priority
	DeliveryMode DeliveryMode
	Filter       FilterFunc
	Once         bool
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Priority = p
	}
}

// WithDeliveryMode sets the delivery mode.
func WithDeliveryMode(m DeliveryMode) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.DeliveryMode = m
	}
}

// WithFilter sets a filter predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// WithOnce cancels the subscription after its first delivery.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

const (
	stateActive int32 = iota
	statePaused
	stateCancelled
)

type subscription struct {
	id      string
	topic   topic.Topic
	handler Handler
	config  SubscriptionConfig
	state   atomic.Int32
}

func newSubscription(id string, t topic.Topic, h Handler, opts ...SubscriptionOption) *subscription {
	config := SubscriptionConfig{Priority: PriorityNormal, DeliveryMode: DeliverySync}
	for _, opt := range opts {
		opt(&config)
	}
	return &subscription{id: id, topic: t, handler: h, config: config}
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Topic() topic.Topic {
	return s.topic
}

func (s *subscription) IsActive() bool {
	return s.state.Load() == stateActive
}

func (s *subscription) Pause() {
	s.state.CompareAndSwap(stateActive, statePaused)
}

func (s *subscription) Resume() {
	s.state.CompareAndSwap(statePaused, stateActive)
}

func (s *subscription) Cancel() {
	s.state.Store(stateCancelled)
}

// shouldDeliver reports whether event goes to this subscription.
func (s *subscription) shouldDeliver(event any) bool {
	if !s.IsActive() {
		return false
	}
	return s.config.Filter == nil || s.config.Filter(event)
}
