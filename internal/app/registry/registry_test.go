package registry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/core/domain"
)

type fakeClient struct {
	id   string
	mu   sync.Mutex
	sent [][]byte
	err  error

	closeCode int
}

func (f *fakeClient) ConnID() string { return f.id }

func (f *fakeClient) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeClient) CloseWith(code int, reason string) {
	f.mu.Lock()
	f.closeCode = code
	f.mu.Unlock()
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)), "lobby")
}

func TestRegistry_DirectDelivery(t *testing.T) {
	ctx := context.Background()
	h := newTestRegistry()
	agent := &fakeClient{id: "conn-a"}
	h.Register(agent, domain.UserTypeAgent, "agent-1")

	require.NoError(t, h.SendTo(ctx, "agent-1", domain.NoAgentsAvailableFrame{}))
	assert.JSONEq(t, `{"type":"no_agents_available"}`, string(agent.sent[0]))

	err := h.SendTo(ctx, "agent-2", domain.NoAgentsAvailableFrame{})
	assert.ErrorIs(t, err, domain.ErrStaleRecipient)

	c, role, identity, ok := h.Client("conn-a")
	require.True(t, ok)
	assert.Same(t, agent, c)
	assert.Equal(t, domain.UserTypeAgent, role)
	assert.Equal(t, "agent-1", identity)
}

func TestRegistry_UnregisterKeepsNewerBinding(t *testing.T) {
	h := newTestRegistry()
	old := &fakeClient{id: "conn-old"}
	replacement := &fakeClient{id: "conn-new"}
	h.Register(old, domain.UserTypeAgent, "agent-1")
	h.Register(replacement, domain.UserTypeAgent, "agent-1")

	assert.True(t, h.Unregister("conn-old"))
	assert.False(t, h.Unregister("conn-old"))

	connID, ok := h.Lookup("agent-1")
	require.True(t, ok)
	assert.Equal(t, "conn-new", connID)
	assert.Equal(t, 1, h.Len())
}

func TestRegistry_BroadcastExcludes(t *testing.T) {
	h := newTestRegistry()
	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b"}
	c := &fakeClient{id: "c", err: domain.ErrSendBufferFull}
	h.Register(a, domain.UserTypeAgent, "agent-1")
	h.Register(b, domain.UserTypeCustomer, "b")
	h.Register(c, domain.UserTypeCustomer, "c")

	h.Broadcast(context.Background(), domain.AgentNowAvailableFrame{AgentID: "agent-1"}, "a")

	assert.Equal(t, 0, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, c.count())
}

func TestRegistry_StaleRecipient(t *testing.T) {
	h := newTestRegistry()

	err := h.SendTo(t.Context(), "nobody", domain.NoAgentsAvailableFrame{})

	assert.ErrorIs(t, err, domain.ErrStaleRecipient)
}

func TestRegistry_CloseAll(t *testing.T) {
	h := newTestRegistry()
	a, b := &fakeClient{id: "a"}, &fakeClient{id: "b"}
	h.Register(a, domain.UserTypeCustomer, "a")
	h.Register(b, domain.UserTypeAgent, "agent-b")

	h.CloseAll(domain.CloseGoingAway, domain.ReasonShutdown)

	assert.Equal(t, domain.CloseGoingAway, a.closeCode)
	assert.Equal(t, domain.CloseGoingAway, b.closeCode)
	assert.Equal(t, 0, h.Len())
	_, ok := h.Lookup("agent-b")
	assert.False(t, ok)
}
