package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/app/registry"
	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
	"supportdesk/internal/core/services"
	"supportdesk/internal/plugins/memory"
)

type fakeValidator map[string]domain.Seat

func (v fakeValidator) Validate(ctx context.Context, credential string) (domain.Seat, error) {
	if seat, ok := v[credential]; ok {
		return seat, nil
	}
	return domain.Seat{}, domain.ErrUnknownCredential
}

type harness struct {
	url   string
	rooms *services.RoomManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rooms := services.NewRoomManager(context.Background(), log, memory.NewMessageRepo(),
		func(roomID string) contracts.Registry { return registry.NewRegistry(log, roomID) },
		nil, 16)
	validator := fakeValidator{"good-key": {SeatID: 3, AgentID: "agent-3"}}
	srv := NewServer(log, "test", ":0", rooms, validator, 16)
	ts := httptest.NewServer(srv.Handler("test"))
	t.Cleanup(func() {
		rooms.Shutdown()
		ts.Close()
	})
	return &harness{url: ts.URL, rooms: rooms}
}

func (h *harness) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(h.url, "http")+path, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func readTypes(t *testing.T, conn *websocket.Conn, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := range out {
		out[i], _ = readFrame(t, conn)["type"].(string)
	}
	return out
}

func TestServer_CustomerAndAgentChat(t *testing.T) {
	h := newHarness(t)

	customer := h.dial(t, "/parties/chat/lobby")
	assert.Equal(t, []string{"all", "no_agents_available", "customer_queued"}, readTypes(t, customer, 3))

	agent := h.dial(t, "/parties/chat/lobby/agent/good-key")
	assert.Equal(t, []string{"all", "agent_assigned"}, readTypes(t, agent, 2))
	assert.Equal(t, "agent_now_available", readFrame(t, customer)["type"])
	assigned := readFrame(t, customer)
	assert.Equal(t, "agent_assigned", assigned["type"])
	assert.Equal(t, "agent-3", assigned["agentId"])

	require.NoError(t, customer.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"add","id":"m1","content":"hi","user":"Ann","role":"user"}`)))
	relayed := readFrame(t, agent)
	assert.Equal(t, "add", relayed["type"])
	assert.Equal(t, "hi", relayed["content"])
	assert.Equal(t, "customer", relayed["userType"])

	require.NoError(t, customer.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	errFrame := readFrame(t, customer)
	assert.Equal(t, "error", errFrame["type"])
	assert.Equal(t, domain.CodeMalformedMessage, errFrame["code"])

	require.NoError(t, agent.Close())
	notice := readFrame(t, customer)
	assert.Equal(t, domain.SystemAuthor, notice["user"])
	queued := readFrame(t, customer)
	assert.Equal(t, "customer_queued", queued["type"])
	assert.Equal(t, float64(1), queued["position"])
}

func TestServer_InvalidCredentialClosesWithPolicyViolation(t *testing.T) {
	h := newHarness(t)

	agent := h.dial(t, "/parties/chat/lobby/agent/bad-key")
	require.NoError(t, agent.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := agent.ReadMessage()

	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)

	room, err := h.rooms.Room("lobby")
	require.NoError(t, err)
	stats, err := room.Stats(t.Context())
	require.NoError(t, err)
	assert.Empty(t, stats.Available)
	assert.Equal(t, 0, stats.Connections)
}

func TestServer_SupersededAgentConnection(t *testing.T) {
	h := newHarness(t)

	first := h.dial(t, "/parties/chat/lobby/agent/good-key")
	readTypes(t, first, 1)
	second := h.dial(t, "/parties/chat/lobby/agent/good-key")
	readTypes(t, second, 1)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(5*time.Second)))
	var closeErr *websocket.CloseError
	for {
		_, _, err := first.ReadMessage()
		if err != nil {
			require.True(t, errors.As(err, &closeErr), "got %v", err)
			break
		}
	}
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, domain.ReasonSuperseded, closeErr.Text)

	room, err := h.rooms.Room("lobby")
	require.NoError(t, err)
	stats, err := room.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []domain.AgentIdentity{"agent-3"}, stats.Available)
}

func TestServer_RejectsUnknownPaths(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/parties/chat/lobby/other/x", "/parties/chat/bad%20room"} {
		resp, err := http.Get(h.url + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.GreaterOrEqual(t, resp.StatusCode, 400, path)
	}
}

func TestServer_Healthz(t *testing.T) {
	h := newHarness(t)
	_, err := h.rooms.Room("lobby")
	require.NoError(t, err)

	resp, err := http.Get(h.url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["rooms"])
}
