package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// RoomManager maps room ids to running rooms, creating them on first use.
// Rooms share nothing but the repository handle and the event emitter.
type RoomManager struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	repo        domain.MessageRepository
	newRegistry func(roomID string) contracts.Registry
	events      contracts.EventEmitter
	inboxSize   int
	ctx         context.Context
	log         *slog.Logger
}

func NewRoomManager(
	ctx context.Context,
	log *slog.Logger,
	repo domain.MessageRepository,
	newRegistry func(roomID string) contracts.Registry,
	events contracts.EventEmitter,
	inboxSize int,
) *RoomManager {
	return &RoomManager{
		rooms:       make(map[string]*Room),
		repo:        repo,
		newRegistry: newRegistry,
		events:      events,
		inboxSize:   inboxSize,
		ctx:         ctx,
		log:         log,
	}
}

// Room returns the running room for id, starting it if needed. A room whose
// start failed is replaced on the next call.
func (m *RoomManager) Room(id string) (*Room, error) {
	if !roomIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRoomID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		select {
		case <-r.Done():
			m.log.Warn("rooms - room - replacing stopped room", "room_id", id, "err", r.Err())
		default:
			return r, nil
		}
	}
	r := NewRoom(m.log, id, m.newRegistry(id), m.repo, m.events, m.inboxSize)
	r.Start(m.ctx)
	m.rooms[id] = r
	m.log.Info("rooms - room - started", "room_id", id, "rooms", len(m.rooms))
	return r, nil
}

// Len is the number of rooms created so far.
func (m *RoomManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Shutdown stops every room in parallel.
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	clear(m.rooms)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range rooms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop()
		}()
	}
	wg.Wait()
	m.log.Info("rooms - shutdown - all rooms stopped", "rooms", len(rooms))
}
