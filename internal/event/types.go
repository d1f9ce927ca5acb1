package event

import "context"

// Priority determines handler execution order. Lower values run first.
type Priority int

// Priorities.
const (
	// PriorityCritical is for the view that applies patches.
	PriorityCritical Priority = 0

	// PriorityHigh is for scroll handling.
	PriorityHigh Priority = 100

	// PriorityNormal is the default.
	PriorityNormal Priority = 200

	// PriorityLow is for recording and logging handlers that run last.
	PriorityLow Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityCritical:
		return "critical"
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// DeliveryMode specifies how events are delivered to a handler.
type DeliveryMode int

const (
	// DeliverySync runs the handler in the publisher's goroutine.
	DeliverySync DeliveryMode = iota

	// DeliveryAsync queues the event for the bus worker.
	DeliveryAsync
)

// String returns a human-readable delivery mode name.
func (m DeliveryMode) String() string {
	switch m {
	case DeliverySync:
		return "sync"
	case DeliveryAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Handler handles events.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// FilterFunc decides whether an event is delivered to a subscription.
type FilterFunc func(event any) bool

// Stats holds bus counters.
type Stats struct {
	EventsPublished   uint64
	EventsDelivered   uint64
	EventsDropped     uint64
	HandlerErrors     uint64
	HandlerPanics     uint64
	ActiveSubscribers int
	QueueDepth        int
}
