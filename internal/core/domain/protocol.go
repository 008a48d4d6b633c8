package domain

import (
	"encoding/json"
	"fmt"
)

const (
	TypeAdd               = "add"
	TypeUpdate            = "update"
	TypeAll               = "all"
	TypeCustomerQueued    = "customer_queued"
	TypeAgentAssigned     = "agent_assigned"
	TypeNoAgentsAvailable = "no_agents_available"
	TypeAgentNowAvailable = "agent_now_available"
	TypeError             = "error"
)

// Error codes carried by ErrorFrame.
const (
	CodeMalformedMessage  = "malformed_message"
	CodePersistenceFailed = "persistence_failed"
)

// Frame is one wire envelope. The set of implementations is closed: every
// variant below, and nothing else, can be encoded.
type Frame interface {
	FrameType() string
	frame()
}

// AddFrame announces a new chat message.
type AddFrame struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	User     string   `json:"user"`
	Role     Role     `json:"role"`
	UserType UserType `json:"userType,omitempty"`
}

// UpdateFrame upserts an existing chat message.
type UpdateFrame struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	User     string   `json:"user"`
	Role     Role     `json:"role"`
	UserType UserType `json:"userType"`
}

// AllFrame is the full replay snapshot sent to a new connection.
type AllFrame struct {
	Messages []Message `json:"messages"`
}

type CustomerQueuedFrame struct {
	CustomerID CustomerIdentity `json:"customerId"`
	Position   int              `json:"position"`
}

type AgentAssignedFrame struct {
	CustomerID CustomerIdentity `json:"customerId"`
	AgentID    AgentIdentity    `json:"agentId"`
}

type NoAgentsAvailableFrame struct{}

type AgentNowAvailableFrame struct {
	AgentID AgentIdentity `json:"agentId"`
}

// ErrorFrame is a WS-safe error sent only to the offending connection.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (AddFrame) FrameType() string               { return TypeAdd }
func (UpdateFrame) FrameType() string            { return TypeUpdate }
func (AllFrame) FrameType() string               { return TypeAll }
func (CustomerQueuedFrame) FrameType() string    { return TypeCustomerQueued }
func (AgentAssignedFrame) FrameType() string     { return TypeAgentAssigned }
func (NoAgentsAvailableFrame) FrameType() string { return TypeNoAgentsAvailable }
func (AgentNowAvailableFrame) FrameType() string { return TypeAgentNowAvailable }
func (ErrorFrame) FrameType() string             { return TypeError }

func (AddFrame) frame()               {}
func (UpdateFrame) frame()            {}
func (AllFrame) frame()               {}
func (CustomerQueuedFrame) frame()    {}
func (AgentAssignedFrame) frame()     {}
func (NoAgentsAvailableFrame) frame() {}
func (AgentNowAvailableFrame) frame() {}
func (ErrorFrame) frame()             {}

// Message converts a chat frame into the stored form.
func (f AddFrame) Message() Message {
	return Message{ID: f.ID, User: f.User, Role: f.Role, Content: f.Content, UserType: f.UserType}
}

func (f UpdateFrame) Message() Message {
	return Message{ID: f.ID, User: f.User, Role: f.Role, Content: f.Content, UserType: f.UserType}
}

// ChatFrame renders a stored message as the frame relayed to peers.
func ChatFrame(m Message) AddFrame {
	return AddFrame{ID: m.ID, Content: m.Content, User: m.User, Role: m.Role, UserType: m.UserType}
}

// Encode marshals f with its "type" discriminator.
func Encode(f Frame) ([]byte, error) {
	switch v := f.(type) {
	case AddFrame:
		return marshalTyped(TypeAdd, v)
	case UpdateFrame:
		return marshalTyped(TypeUpdate, v)
	case AllFrame:
		if v.Messages == nil {
			v.Messages = []Message{}
		}
		return marshalTyped(TypeAll, v)
	case CustomerQueuedFrame:
		return marshalTyped(TypeCustomerQueued, v)
	case AgentAssignedFrame:
		return marshalTyped(TypeAgentAssigned, v)
	case NoAgentsAvailableFrame:
		return marshalTyped(TypeNoAgentsAvailable, v)
	case AgentNowAvailableFrame:
		return marshalTyped(TypeAgentNowAvailable, v)
	case ErrorFrame:
		return marshalTyped(TypeError, v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFrame, f)
	}
}

// marshalTyped writes v's JSON object with "type" as its first field.
func marshalTyped(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(typ)
	out := make([]byte, 0, len(body)+len(tag)+9)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
		return out, nil
	}
	return append(out, '}'), nil
}

// DecodeInbound parses a client frame. Clients may only send chat frames;
// anything else is rejected with ErrUnsupportedFrame.
func DecodeInbound(raw []byte) (Frame, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch head.Type {
	case TypeAdd:
		var f AddFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if err := f.Message().Validate(); err != nil {
			return nil, err
		}
		return f, nil
	case TypeUpdate:
		var f UpdateFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if err := f.Message().Validate(); err != nil {
			return nil, err
		}
		return f, nil
	case "":
		return nil, invalid("type is required")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFrame, head.Type)
	}
}

// Close codes used when the engine ends a connection (RFC 6455 §7.4.1).
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
)

// Close reasons.
const (
	ReasonSuperseded   = "superseded"
	ReasonUnauthorized = "invalid agent credential"
	ReasonShutdown     = "room shutting down"
)
