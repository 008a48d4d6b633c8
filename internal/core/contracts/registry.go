package contracts

import (
	"context"
	"supportdesk/internal/core/domain"
)

// Client represents the minimal interface required to deliver frames to
// one live transport connection.
type Client interface {
	// ConnID is the ephemeral id of this transport connection.
	ConnID() string
	// Send queues data for delivery. It never blocks; a full buffer is an error.
	Send(ctx context.Context, data []byte) error
	// CloseWith closes the connection with a close code and reason.
	CloseWith(code int, reason string)
}

// Registry is the per-room bookkeeping of live connections.
type Registry interface {
	// Register adds a connection tagged with its role and identity.
	Register(c Client, role domain.UserType, identity string)
	// Unregister removes the connection; it returns false if it was unknown.
	Unregister(connID string) bool
	// Client returns the connection registered under connID with its role and identity.
	Client(connID string) (c Client, role domain.UserType, identity string, ok bool)
	// Len is the number of live connections.
	Len() int
	// Lookup returns the connection id currently bound to identity.
	Lookup(identity string) (string, bool)
	// SendTo delivers a frame directly to the connection bound to identity.
	SendTo(ctx context.Context, identity string, frame domain.Frame) error
	// Broadcast delivers a frame to every connection not in exclude.
	Broadcast(ctx context.Context, frame domain.Frame, exclude ...string)
	// CloseAll closes and forgets every connection.
	CloseAll(code int, reason string)
}
