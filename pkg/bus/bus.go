package bus

import (
	"context"

	"kreatorboard/pkg/domain"
)

const EventMessageCreated = "message.created"

// Event is broadcast to every chat service instance whenever a message is
// written, so websocket subscribers on any instance see it.
type Event struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

// Bus fans chat events out to all subscribed instances.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe invokes handler for every event until ctx is done.
	Subscribe(ctx context.Context, handler func(Event))
	Close() error
}
