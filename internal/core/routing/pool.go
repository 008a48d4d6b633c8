// Package routing holds the per-room collections the matching engine
// mutates. None of the types are safe for concurrent use; a room owns them
// and touches them only from its own event loop.
package routing

import (
	"slices"

	"supportdesk/internal/core/domain"
)

// AvailabilityPool is an insertion-ordered set of unassigned agents.
type AvailabilityPool struct {
	agents []domain.AgentIdentity
}

func NewAvailabilityPool() *AvailabilityPool {
	return &AvailabilityPool{}
}

// Add appends id at the back. It returns false if id was already present.
func (p *AvailabilityPool) Add(id domain.AgentIdentity) bool {
	if p.Contains(id) {
		return false
	}
	p.agents = append(p.agents, id)
	return true
}

// Remove drops id wherever it is. It returns false if id was absent.
func (p *AvailabilityPool) Remove(id domain.AgentIdentity) bool {
	i := slices.Index(p.agents, id)
	if i < 0 {
		return false
	}
	p.agents = slices.Delete(p.agents, i, i+1)
	return true
}

// PopOldest removes and returns the agent that has been available longest.
func (p *AvailabilityPool) PopOldest() (domain.AgentIdentity, bool) {
	if len(p.agents) == 0 {
		return "", false
	}
	id := p.agents[0]
	p.agents = slices.Delete(p.agents, 0, 1)
	return id, true
}

func (p *AvailabilityPool) Contains(id domain.AgentIdentity) bool {
	return slices.Contains(p.agents, id)
}

func (p *AvailabilityPool) Len() int {
	return len(p.agents)
}

// Snapshot returns a copy of the pool, oldest first.
func (p *AvailabilityPool) Snapshot() []domain.AgentIdentity {
	return slices.Clone(p.agents)
}
