package registry

import (
	"context"
	"log/slog"
	"sync"

	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
)

type entry struct {
	client   contracts.Client
	role     domain.UserType
	identity string
}

// Registry tracks one room's live connections: connection id to client, and
// identity to the connection currently delivering for it.
type Registry struct {
	mu         sync.RWMutex
	roomID     string
	clients    map[string]entry  // conn_id → client
	byIdentity map[string]string // identity → conn_id
	log        *slog.Logger
}

func NewRegistry(log *slog.Logger, roomID string) *Registry {
	return &Registry{
		roomID:     roomID,
		clients:    make(map[string]entry),
		byIdentity: make(map[string]string),
		log:        log,
	}
}

func (h *Registry) Register(c contracts.Client, role domain.UserType, identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ConnID()] = entry{client: c, role: role, identity: identity}
	h.byIdentity[identity] = c.ConnID()
}

func (h *Registry) Unregister(connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.clients[connID]
	if !ok {
		return false
	}
	delete(h.clients, connID)
	if h.byIdentity[e.identity] == connID {
		delete(h.byIdentity, e.identity)
	}
	return true
}

func (h *Registry) Lookup(identity string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byIdentity[identity]
	return id, ok
}

// Client returns the live client for connID with its role and identity.
func (h *Registry) Client(connID string) (contracts.Client, domain.UserType, string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.clients[connID]
	return e.client, e.role, e.identity, ok
}

func (h *Registry) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Registry) SendTo(ctx context.Context, identity string, frame domain.Frame) error {
	h.mu.RLock()
	var c contracts.Client
	if connID, ok := h.byIdentity[identity]; ok {
		c = h.clients[connID].client
	}
	h.mu.RUnlock()
	if c == nil {
		h.log.WarnContext(ctx, "registry - send to - stale recipient", "room_id", h.roomID, "identity", identity, "type", frame.FrameType())
		return domain.ErrStaleRecipient
	}
	data, err := domain.Encode(frame)
	if err != nil {
		return err
	}
	if err := c.Send(ctx, data); err != nil {
		h.log.WarnContext(ctx, "registry - send to - delivery failed", "room_id", h.roomID, "conn_id", c.ConnID(), "type", frame.FrameType(), "err", err)
		return err
	}
	return nil
}

func (h *Registry) Broadcast(ctx context.Context, frame domain.Frame, exclude ...string) {
	data, err := domain.Encode(frame)
	if err != nil {
		h.log.ErrorContext(ctx, "registry - broadcast - encode failed", "room_id", h.roomID, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, e := range h.clients {
		if skip(connID, exclude) {
			continue
		}
		if err := e.client.Send(ctx, data); err != nil {
			h.log.WarnContext(ctx, "registry - broadcast - delivery failed", "room_id", h.roomID, "conn_id", connID, "err", err)
		}
	}
}

func (h *Registry) CloseAll(code int, reason string) {
	h.mu.Lock()
	clients := make([]contracts.Client, 0, len(h.clients))
	for _, e := range h.clients {
		clients = append(clients, e.client)
	}
	clear(h.clients)
	clear(h.byIdentity)
	h.mu.Unlock()
	for _, c := range clients {
		c.CloseWith(code, reason)
	}
}

func skip(connID string, exclude []string) bool {
	for _, x := range exclude {
		if x == connID {
			return true
		}
	}
	return false
}
