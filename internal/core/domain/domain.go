package domain

import "strings"

// UserType tags a connection, and the messages it authors, as agent or customer.
type UserType string

const (
	UserTypeAgent    UserType = "agent"
	UserTypeCustomer UserType = "customer"
)

func (u UserType) Valid() bool {
	return u == UserTypeAgent || u == UserTypeCustomer
}

// Role is the chat rendering role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// SystemAuthor is the author name of engine-generated chat messages.
const SystemAuthor = "System"

// Message is one entry of a room's chat log. ID is unique within the room;
// Content and UserType are the only fields an upsert may change.
type Message struct {
	ID       string   `json:"id" db:"id"`
	User     string   `json:"user" db:"author"`
	Role     Role     `json:"role" db:"role"`
	Content  string   `json:"content" db:"content"`
	UserType UserType `json:"userType,omitempty" db:"user_type"`
}

// Validate checks the fields every stored message must carry.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return invalid("id is required")
	case m.User == "":
		return invalid("user is required")
	case !m.Role.Valid():
		return invalid("role must be user or assistant")
	case m.UserType != "" && !m.UserType.Valid():
		return invalid("userType must be agent or customer")
	}
	return nil
}

// AgentIdentity is the stable identity a seat credential resolves to.
type AgentIdentity string

// CustomerIdentity is a customer's connection id.
type CustomerIdentity string

// Assignment is one active customer/agent pairing.
type Assignment struct {
	Customer CustomerIdentity
	Agent    AgentIdentity
}

// Seat is the result of a successful credential validation.
type Seat struct {
	SeatID  int           `json:"seatId"`
	AgentID AgentIdentity `json:"agentId"`
}
