package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"supportdesk/internal/core/domain"
)

// MessageStore is one room's ordered, upsert-by-id chat log. Every append
// is written to the repository before memory changes, so the log never
// holds a message the durable store rejected. Not safe for concurrent use;
// the owning room serialises access.
type MessageStore struct {
	roomID   string
	repo     domain.MessageRepository
	messages []domain.Message
	index    map[string]int
	lastSeq  int64 // highest seq handed to the repository, committed or not
	log      *slog.Logger
}

func NewMessageStore(log *slog.Logger, roomID string, repo domain.MessageRepository) *MessageStore {
	return &MessageStore{
		roomID: roomID,
		repo:   repo,
		index:  make(map[string]int),
		log:    log,
	}
}

// Load rehydrates the log from the repository in persisted order.
func (s *MessageStore) Load(ctx context.Context) error {
	msgs, err := s.repo.List(ctx, s.roomID)
	if err != nil {
		s.log.ErrorContext(ctx, "messages - load - list failed", "room_id", s.roomID, "err", err)
		return fmt.Errorf("load room %s: %w", s.roomID, err)
	}
	last, err := s.repo.LastSeq(ctx, s.roomID)
	if err != nil {
		s.log.ErrorContext(ctx, "messages - load - last seq failed", "room_id", s.roomID, "err", err)
		return fmt.Errorf("load room %s: %w", s.roomID, err)
	}
	s.lastSeq = max(last, int64(len(msgs)))
	s.messages = s.messages[:0]
	clear(s.index)
	for _, m := range msgs {
		s.apply(m)
	}
	s.log.InfoContext(ctx, "messages - load - success", "room_id", s.roomID, "len_messages", len(s.messages))
	return nil
}

// Append inserts msg or, if its id is known, replaces content and userType
// in place. It reports whether the message was new.
func (s *MessageStore) Append(ctx context.Context, msg domain.Message) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}
	// A failed write may still have committed, so a seq is never reused.
	var seq int64
	if _, ok := s.index[msg.ID]; !ok {
		s.lastSeq++
		seq = s.lastSeq
	}
	if err := s.repo.Upsert(ctx, s.roomID, seq, msg); err != nil {
		s.log.ErrorContext(ctx, "messages - append - upsert failed", "room_id", s.roomID, "message_id", msg.ID, "err", err)
		return false, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return s.apply(msg), nil
}

func (s *MessageStore) apply(msg domain.Message) bool {
	if i, ok := s.index[msg.ID]; ok {
		s.messages[i].Content = msg.Content
		s.messages[i].UserType = msg.UserType
		return false
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return true
}

// Get returns the stored form of id.
func (s *MessageStore) Get(id string) (domain.Message, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return s.messages[i], true
}

// Snapshot returns a copy of the full log in arrival order.
func (s *MessageStore) Snapshot() []domain.Message {
	return slices.Clone(s.messages)
}

func (s *MessageStore) Len() int {
	return len(s.messages)
}
