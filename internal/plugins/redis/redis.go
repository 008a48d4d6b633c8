package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"supportdesk/internal/config"
	"supportdesk/internal/core/domain"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RoutingMirror publishes routing events to redis: every event is appended
// to the room's stream and the room's availability set is kept in step
// with the pool.
type RoutingMirror struct {
	rdb          *redis.Client
	streamMaxLen int64
}

func NewRoutingMirror(rdb *redis.Client, streamMaxLen int64) *RoutingMirror {
	if streamMaxLen <= 0 {
		streamMaxLen = 1000
	}
	return &RoutingMirror{rdb: rdb, streamMaxLen: streamMaxLen}
}

func (m *RoutingMirror) Publish(ctx context.Context, evt domain.RoomEvent) error {
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := m.appendEvent(ctx, pipe, evt); err != nil {
			return err
		}
		m.trackAvailability(ctx, pipe, evt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis mirror %s/%s: %w", evt.RoomID, evt.Kind, err)
	}
	return nil
}

// Close releases the underlying client.
func (m *RoutingMirror) Close() error {
	return m.rdb.Close()
}
