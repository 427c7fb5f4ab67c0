package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMarkStore persists the poll high-water mark: the receive time of the
// newest message a cycle has fully processed. Older messages are never
// reconsidered even after the processed-events table is trimmed.
type RedisMarkStore struct {
	client *redis.Client
}

func NewRedisMarkStore(client *redis.Client) *RedisMarkStore {
	if client == nil {
		panic("poller: redis client required")
	}
	return &RedisMarkStore{client: client}
}

func (s *RedisMarkStore) HighWaterMark(ctx context.Context, tenantID string) (time.Time, error) {
	raw, err := s.client.Get(ctx, markKey(tenantID)).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("poller: read high water mark: %w", err)
	}
	return time.Unix(raw, 0).UTC(), nil
}

func (s *RedisMarkStore) RecordHighWaterMark(ctx context.Context, tenantID string, t time.Time) error {
	// Monotonic: never move the mark backwards.
	current, err := s.HighWaterMark(ctx, tenantID)
	if err == nil && t.Before(current) {
		return nil
	}
	if err := s.client.Set(ctx, markKey(tenantID), t.Unix(), 0).Err(); err != nil {
		return fmt.Errorf("poller: record high water mark: %w", err)
	}
	return nil
}

func markKey(tenantID string) string {
	return fmt.Sprintf("poll:high_water_mark:%s", tenantID)
}
