package routing

import (
	"slices"

	"supportdesk/internal/core/domain"
)

// WaitingQueue is the FIFO of customers awaiting an agent. Positions are
// 1-based.
type WaitingQueue struct {
	customers []domain.CustomerIdentity
}

func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{}
}

// Enqueue appends id and returns its position. An id already queued keeps
// its place and its current position is returned with ok false.
func (q *WaitingQueue) Enqueue(id domain.CustomerIdentity) (position int, ok bool) {
	if i := slices.Index(q.customers, id); i >= 0 {
		return i + 1, false
	}
	q.customers = append(q.customers, id)
	return len(q.customers), true
}

// Dequeue removes and returns the customer at the front.
func (q *WaitingQueue) Dequeue() (domain.CustomerIdentity, bool) {
	if len(q.customers) == 0 {
		return "", false
	}
	id := q.customers[0]
	q.customers = slices.Delete(q.customers, 0, 1)
	return id, true
}

// Remove drops id and returns the position it held, or 0 if absent.
func (q *WaitingQueue) Remove(id domain.CustomerIdentity) int {
	i := slices.Index(q.customers, id)
	if i < 0 {
		return 0
	}
	q.customers = slices.Delete(q.customers, i, i+1)
	return i + 1
}

func (q *WaitingQueue) Len() int {
	return len(q.customers)
}

// Snapshot returns a copy of the queue, front first.
func (q *WaitingQueue) Snapshot() []domain.CustomerIdentity {
	return slices.Clone(q.customers)
}
