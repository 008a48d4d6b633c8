package handlers

import (
	"encoding/json"
	"net/http"

	"supportdesk/internal/core/services"
)

type HealthHandler struct {
	rooms *services.RoomManager
}

func NewHealthHandler(rooms *services.RoomManager) *HealthHandler {
	return &HealthHandler{rooms: rooms}
}

func (h *HealthHandler) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "rooms": h.rooms.Len()})
}
