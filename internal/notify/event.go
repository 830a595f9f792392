package notify

import (
	"context"
	"time"

	"github.com/nerrad567/power-analytics/internal/reading"
)

// Kind names what happened to a reading.
type Kind string

// Event kinds.
const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// channelPrefix is prepended to the kind to form the WebSocket channel.
const channelPrefix = "reading."

// Event describes one change to one reading.
type Event struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`

	// Reading is the state after the change. Nil for deletes.
	Reading *reading.DTO `json:"reading,omitempty"`

	OccurredAt time.Time `json:"occurredAt"`
}

// Channel returns the WebSocket channel the event is broadcast on,
// e.g. "reading.created".
func (e Event) Channel() string {
	return channelPrefix + string(e.Kind)
}

// Payload is what subscribers receive: the reading itself, or just its id
// once it has been deleted.
func (e Event) Payload() any {
	if e.Reading != nil {
		return e.Reading
	}
	return map[string]int64{"id": e.ID}
}

// Sink receives events from a Dispatcher.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Deliver hands the event to the sink. Implementations must be safe
	// for concurrent use.
	Deliver(ctx context.Context, e Event) error
}

// Channels lists every channel events are published on.
func Channels() []string {
	return []string{
		channelPrefix + string(KindCreated),
		channelPrefix + string(KindUpdated),
		channelPrefix + string(KindDeleted),
	}
}
