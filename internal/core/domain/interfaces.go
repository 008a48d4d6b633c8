package domain

import "context"

// MessageRepository is the durable backing of a room's message log.
type MessageRepository interface {
	// Upsert inserts msg at position seq, or, if the id already exists in the
	// room, replaces its content and userType while keeping its position; seq
	// is ignored in that case.
	Upsert(ctx context.Context, roomID string, seq int64, msg Message) error
	// List returns the room's messages in persisted order.
	List(ctx context.Context, roomID string) ([]Message, error)
	// LastSeq returns the highest seq stored for the room, or 0.
	LastSeq(ctx context.Context, roomID string) (int64, error)
}
