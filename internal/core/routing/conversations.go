package routing

import (
	"supportdesk/internal/core/domain"
)

// ConversationMap is the bijection between paired customers and agents.
type ConversationMap struct {
	byCustomer map[domain.CustomerIdentity]domain.AgentIdentity
	byAgent    map[domain.AgentIdentity]domain.CustomerIdentity
}

func NewConversationMap() *ConversationMap {
	return &ConversationMap{
		byCustomer: make(map[domain.CustomerIdentity]domain.AgentIdentity),
		byAgent:    make(map[domain.AgentIdentity]domain.CustomerIdentity),
	}
}

// Pair records an assignment. It refuses (returns false) if either side is
// already paired.
func (m *ConversationMap) Pair(c domain.CustomerIdentity, a domain.AgentIdentity) bool {
	if _, busy := m.byCustomer[c]; busy {
		return false
	}
	if _, busy := m.byAgent[a]; busy {
		return false
	}
	m.byCustomer[c] = a
	m.byAgent[a] = c
	return true
}

func (m *ConversationMap) AgentOf(c domain.CustomerIdentity) (domain.AgentIdentity, bool) {
	a, ok := m.byCustomer[c]
	return a, ok
}

func (m *ConversationMap) CustomerOf(a domain.AgentIdentity) (domain.CustomerIdentity, bool) {
	c, ok := m.byAgent[a]
	return c, ok
}

// EndForCustomer dissolves c's conversation and returns the freed agent.
func (m *ConversationMap) EndForCustomer(c domain.CustomerIdentity) (domain.AgentIdentity, bool) {
	a, ok := m.byCustomer[c]
	if !ok {
		return "", false
	}
	delete(m.byCustomer, c)
	delete(m.byAgent, a)
	return a, true
}

// EndForAgent dissolves a's conversation and returns the freed customer.
func (m *ConversationMap) EndForAgent(a domain.AgentIdentity) (domain.CustomerIdentity, bool) {
	c, ok := m.byAgent[a]
	if !ok {
		return "", false
	}
	delete(m.byAgent, a)
	delete(m.byCustomer, c)
	return c, true
}

func (m *ConversationMap) Len() int {
	return len(m.byCustomer)
}

// Assignments returns every active pairing in no particular order.
func (m *ConversationMap) Assignments() []domain.Assignment {
	out := make([]domain.Assignment, 0, len(m.byCustomer))
	for c, a := range m.byCustomer {
		out = append(out, domain.Assignment{Customer: c, Agent: a})
	}
	return out
}
