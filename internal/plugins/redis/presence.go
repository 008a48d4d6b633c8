package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"supportdesk/internal/core/domain"
)

func availableKey(roomID string) string {
	return "available:" + roomID
}

// trackAvailability mirrors the availability pool into a ZSET scored by the
// time the agent became available, so ZRANGE lists agents oldest first.
func (m *RoutingMirror) trackAvailability(ctx context.Context, pipe redis.Pipeliner, evt domain.RoomEvent) {
	key := availableKey(evt.RoomID)
	switch evt.Kind {
	case domain.EventAgentAvailable:
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(evt.At.UnixMilli()),
			Member: string(evt.AgentID),
		})
	case domain.EventAgentUnavailable, domain.EventAgentAssigned:
		pipe.ZRem(ctx, key, string(evt.AgentID))
	}
}

// availableAgents returns the mirrored pool of roomID, oldest first.
func (m *RoutingMirror) availableAgents(ctx context.Context, roomID string) ([]domain.AgentIdentity, error) {
	members, err := m.rdb.ZRange(ctx, availableKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AgentIdentity, len(members))
	for i, s := range members {
		out[i] = domain.AgentIdentity(s)
	}
	return out, nil
}
