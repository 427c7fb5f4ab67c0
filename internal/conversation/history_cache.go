package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// HistoryCache keeps the recent turn list in Redis so the hot path avoids a
// Postgres read per inbound message. Postgres stays the source of truth; a
// cache miss falls through to the store.
type HistoryCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewHistoryCache(client *redis.Client, tracer trace.Tracer) *HistoryCache {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("leadrail.internal.conversation.history")
	}
	return &HistoryCache{redis: client, tracer: tracer}
}

func (c *HistoryCache) Save(ctx context.Context, conversationID string, history []Turn) error {
	ctx, span := c.tracer.Start(ctx, "conversation.cache_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: marshal history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey(conversationID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: cache history: %w", err)
	}
	return nil
}

// Load returns (nil, nil) on a cache miss.
func (c *HistoryCache) Load(ctx context.Context, conversationID string) ([]Turn, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.load_cached_history")
	defer span.End()

	data, err := c.redis.Get(ctx, historyKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load cached history: %w", err)
	}

	var history []Turn
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode cached history: %w", err)
	}
	return history, nil
}

func historyKey(id string) string {
	return fmt.Sprintf("conversation:history:%s", id)
}
