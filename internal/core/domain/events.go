package domain

import "time"

// EventKind names a routing state change published to external sinks.
type EventKind string

const (
	EventCustomerQueued       EventKind = "customer_queued"
	EventAgentAvailable       EventKind = "agent_available"
	EventAgentUnavailable     EventKind = "agent_unavailable"
	EventAgentAssigned        EventKind = "agent_assigned"
	EventConversationEnded    EventKind = "conversation_ended"
	EventCustomerDisconnected EventKind = "customer_disconnected"
)

// RoomEvent is the outbound record of one routing state change.
type RoomEvent struct {
	ID         string           `json:"id"`
	Kind       EventKind        `json:"kind"`
	RoomID     string           `json:"room_id"`
	CustomerID CustomerIdentity `json:"customer_id,omitempty"`
	AgentID    AgentIdentity    `json:"agent_id,omitempty"`
	Position   int              `json:"position,omitempty"`
	At         time.Time        `json:"at"`
}
