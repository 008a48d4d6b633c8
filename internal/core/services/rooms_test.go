package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/app/registry"
	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
	"supportdesk/internal/plugins/memory"
)

func newTestManager() *RoomManager {
	log := discardLogger()
	return NewRoomManager(context.Background(), log, memory.NewMessageRepo(),
		func(roomID string) contracts.Registry { return registry.NewRegistry(log, roomID) },
		nil, 8)
}

func TestRoomManager_RejectsInvalidIDs(t *testing.T) {
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	for _, id := range []string{"", "has space", "../etc", strings.Repeat("a", 65)} {
		_, err := m.Room(id)
		assert.ErrorIs(t, err, domain.ErrInvalidRoomID, "id %q", id)
	}
	assert.Equal(t, 0, m.Len())
}

func TestRoomManager_RoomsAreIndependent(t *testing.T) {
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	a, err := m.Room("billing")
	require.NoError(t, err)
	again, err := m.Room("billing")
	require.NoError(t, err)
	b, err := m.Room("sales")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, a.Connect(t.Context(), newClient("conn-x"), domain.UserTypeAgent, "agent-x"))
	c := newClient("c1")
	require.NoError(t, b.Connect(t.Context(), c, domain.UserTypeCustomer, "c1"))
	assert.Equal(t, []string{"all", "no_agents_available", "customer_queued"}, c.types())
}

func TestRoomManager_ShutdownClosesConnections(t *testing.T) {
	m := newTestManager()
	r, err := m.Room("lobby")
	require.NoError(t, err)
	c := newClient("c1")
	require.NoError(t, r.Connect(t.Context(), c, domain.UserTypeCustomer, "c1"))

	m.Shutdown()

	assert.Equal(t, domain.CloseGoingAway, c.closeCode)
	assert.Equal(t, domain.ReasonShutdown, c.closeReason)
	assert.Equal(t, 0, m.Len())

	replacement, err := m.Room("lobby")
	require.NoError(t, err)
	assert.NotSame(t, r, replacement)
	m.Shutdown()
}
