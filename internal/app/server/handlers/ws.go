package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supportdesk/internal/app/server/ws"
	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
	"supportdesk/internal/core/services"
	"supportdesk/pkg/logging"
)

// RoutePrefix is where chat websockets are served:
// {RoutePrefix}{room} for customers and {RoutePrefix}{room}/agent/{credential}
// for agents.
const RoutePrefix = "/parties/chat/"

var errBadPath = errors.New("unrecognised chat path")

// Target is a classified connection path.
type Target struct {
	Room       string
	Agent      bool
	Credential string
}

// ClassifyPath splits the part of the path after RoutePrefix. A trailing
// "agent/<credential>" pair marks an agent connection.
func ClassifyPath(rest string) (Target, error) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return Target{Room: parts[0]}, nil
	case len(parts) == 3 && parts[0] != "" && parts[1] == "agent" && parts[2] != "":
		return Target{Room: parts[0], Agent: true, Credential: parts[2]}, nil
	}
	return Target{}, fmt.Errorf("%w: %q", errBadPath, rest)
}

type WSHandler struct {
	rooms      *services.RoomManager
	validator  contracts.CredentialValidator
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewWSHandler(rooms *services.RoomManager, validator contracts.CredentialValidator, sendBuffer int) *WSHandler {
	return &WSHandler{
		rooms:      rooms,
		validator:  validator,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the chat widget is embedded on customer sites
			},
		},
	}
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	target, err := ClassifyPath(strings.TrimPrefix(r.URL.Path, RoutePrefix))
	if err != nil {
		log.WarnContext(r.Context(), "ws handler - classify - bad path", logging.Err(err))
		http.NotFound(w, r)
		return
	}
	room, err := h.rooms.Room(target.Room)
	if err != nil {
		log.WarnContext(r.Context(), "ws handler - room - rejected", logging.Room(target.Room), logging.Err(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log = log.With(logging.Room(target.Room))
	role := domain.UserTypeCustomer
	if target.Agent {
		role = domain.UserTypeAgent
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("room.id", target.Room), attribute.String("conn.role", string(role)))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	ctx, cancel := context.WithCancel(logging.WithContext(context.WithoutCancel(r.Context()), log))
	defer cancel()
	socket := ws.NewWebSocket(ctx, log, conn)

	identity := ""
	if target.Agent {
		seat, err := h.validator.Validate(ctx, target.Credential)
		if err != nil {
			if domain.IsCredentialRejection(err) {
				log.WarnContext(ctx, "ws handler - validate - credential rejected", logging.Err(err))
			} else {
				log.ErrorContext(ctx, "ws handler - validate - validator failed", logging.Err(err))
			}
			span.RecordError(err)
			_ = socket.WriteClose(domain.ClosePolicyViolation, domain.ReasonUnauthorized)
			socket.Close()
			return
		}
		identity = string(seat.AgentID)
		span.SetAttributes(attribute.String("agent.id", identity), attribute.Int("agent.seat", seat.SeatID))
	}

	client := ws.NewClient(ctx, socket, h.sendBuffer)
	if identity == "" {
		identity = client.ConnID()
	}
	log = log.With(logging.Conn(client.ConnID()))
	if err := room.Connect(ctx, client, role, identity); err != nil {
		log.ErrorContext(ctx, "ws handler - connect - room refused connection", logging.Err(err))
		client.CloseWith(domain.CloseGoingAway, domain.ReasonShutdown)
		return
	}
	defer func() {
		if err := room.Disconnect(ctx, client.ConnID()); err != nil {
			log.DebugContext(ctx, "ws handler - disconnect - room already gone", logging.Err(err))
		}
	}()
	log.InfoContext(ctx, "ws handler - connect - connection established", "role", role)

	socket.ReadLoop(func(data []byte) {
		if err := room.Deliver(ctx, client.ConnID(), data); err != nil {
			log.WarnContext(ctx, "ws handler - read - frame not delivered", logging.Err(err))
		}
	})
	log.InfoContext(ctx, "ws handler - disconnect - connection closed")
}
