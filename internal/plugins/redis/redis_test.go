package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/config"
	"supportdesk/internal/core/domain"
)

// newTestMirror connects to REDIS_TEST_URL; the tests are skipped without it.
func newTestMirror(t *testing.T) *RoutingMirror {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	rdb, err := NewRedisClient(t.Context(), config.RedisConfig{
		URL:          url,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     2,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	m := NewRoutingMirror(rdb, 100)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "available:lobby", availableKey("lobby"))
	assert.Equal(t, "events:lobby", streamKey("lobby"))
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(t.Context(), config.RedisConfig{URL: "not a url"})
	assert.Error(t, err)
}

func TestRoutingMirror_TracksPoolAndStream(t *testing.T) {
	m := newTestMirror(t)
	ctx := t.Context()
	room := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_ = m.rdb.Del(context.Background(), availableKey(room), streamKey(room)).Err()
	})
	at := time.Now().UTC()

	events := []domain.RoomEvent{
		{ID: "1", Kind: domain.EventAgentAvailable, RoomID: room, AgentID: "a1", At: at},
		{ID: "2", Kind: domain.EventAgentAvailable, RoomID: room, AgentID: "a2", At: at.Add(time.Millisecond)},
		{ID: "3", Kind: domain.EventAgentAssigned, RoomID: room, AgentID: "a1", CustomerID: "c1", At: at.Add(2 * time.Millisecond)},
	}
	for _, evt := range events {
		require.NoError(t, m.Publish(ctx, evt))
	}

	pool, err := m.availableAgents(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, []domain.AgentIdentity{"a2"}, pool)

	recent, err := m.recentEvents(ctx, room, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "3", recent[0].ID)
	assert.Equal(t, domain.CustomerIdentity("c1"), recent[0].CustomerID)
}
