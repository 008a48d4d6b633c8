package contracts

import (
	"context"
	"supportdesk/internal/core/domain"
)

// EventSink receives routing events outside the room's event loop.
type EventSink interface {
	Publish(ctx context.Context, evt domain.RoomEvent) error
	Close() error
}

// EventEmitter is what a room publishes through. Emit must not block.
type EventEmitter interface {
	Emit(evt domain.RoomEvent)
}
