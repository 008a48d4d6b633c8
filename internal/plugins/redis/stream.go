package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"supportdesk/internal/core/domain"
)

func streamKey(roomID string) string {
	return "events:" + roomID
}

func (m *RoutingMirror) appendEvent(ctx context.Context, pipe redis.Pipeliner, evt domain.RoomEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(evt.RoomID),
		MaxLen: m.streamMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"kind": string(evt.Kind), "data": payload},
	})
	return nil
}

// recentEvents reads up to count of the latest events of roomID, newest first.
func (m *RoutingMirror) recentEvents(ctx context.Context, roomID string, count int64) ([]domain.RoomEvent, error) {
	msgs, err := m.rdb.XRevRangeN(ctx, streamKey(roomID), "+", "-", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.RoomEvent, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var evt domain.RoomEvent
		if err := json.Unmarshal([]byte(raw), &evt); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", msg.ID, err)
		}
		out = append(out, evt)
	}
	return out, nil
}
