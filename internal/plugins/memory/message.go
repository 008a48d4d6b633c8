// Package memory is a process-local MessageRepository for tests and
// throwaway deployments.
package memory

import (
	"context"
	"slices"
	"sync"

	"supportdesk/internal/core/domain"
)

type row struct {
	seq int64
	msg domain.Message
}

type MessageRepo struct {
	mu    sync.Mutex
	rooms map[string][]row
	fail  error
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{rooms: make(map[string][]row)}
}

// FailWith makes every later Upsert return err; nil restores normal writes.
func (r *MessageRepo) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *MessageRepo) Upsert(ctx context.Context, roomID string, seq int64, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	rows := r.rooms[roomID]
	for i := range rows {
		if rows[i].msg.ID == msg.ID {
			rows[i].msg.Content = msg.Content
			rows[i].msg.UserType = msg.UserType
			return nil
		}
	}
	r.rooms[roomID] = append(rows, row{seq: seq, msg: msg})
	return nil
}

func (r *MessageRepo) List(ctx context.Context, roomID string) ([]domain.Message, error) {
	r.mu.Lock()
	rows := slices.Clone(r.rooms[roomID])
	r.mu.Unlock()
	slices.SortStableFunc(rows, func(a, b row) int {
		return int(a.seq - b.seq)
	})
	out := make([]domain.Message, 0, len(rows))
	for _, rw := range rows {
		out = append(out, rw.msg)
	}
	return out, nil
}

func (r *MessageRepo) LastSeq(ctx context.Context, roomID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last int64
	for _, rw := range r.rooms[roomID] {
		last = max(last, rw.seq)
	}
	return last, nil
}

// Len is the number of stored messages for roomID.
func (r *MessageRepo) Len(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}
