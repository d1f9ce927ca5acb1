package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/marksync/internal/event/topic"
)

// Event is an event with a typed payload. Events are immutable once
// created.
type Event[T any] struct {
	Type     topic.Topic
	Payload  T
	Metadata Metadata
}

// Metadata is attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies the component that published the event.
	Source string

	// CorrelationID links related events, such as the scroll request
	// caused by a render.
	CorrelationID string
}

// NewEvent creates an event with the given type and payload.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        generateID(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic returns the event's topic for type-erased handling.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// EventMetadata returns the event's metadata for type-erased handling.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// WithCorrelation returns a copy of the event with a correlation ID set.
func (e Event[T]) WithCorrelation(correlationID string) Event[T] {
	e.Metadata.CorrelationID = correlationID
	return e
}

// TopicProvider is implemented by types that know their topic.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// MetadataProvider is implemented by types that carry metadata.
type MetadataProvider interface {
	EventMetadata() Metadata
}

func generateID() string {
	return uuid.NewString()
}
