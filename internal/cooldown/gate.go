package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadrail/leadrail/pkg/logging"
)

// DefaultWindow is the minimum gap between outbound sends on the polling
// channel, tenant-wide.
const DefaultWindow = 120 * time.Second

// acquireScript compares the stored last-sent timestamp against now and, when
// the window has elapsed, overwrites it in the same atomic step. The write
// happens at acquire time, before the send, so a slow send can never let a
// second concurrent poller through.
var acquireScript = redis.NewScript(`
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if now - last >= window then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// Gate is a single shared "can I respond now" check across a whole tenant.
// It deliberately trades per-contact latency for an absolute ceiling on
// outbound volume: the polling path has no push trigger and would otherwise
// risk poll-driven retry storms.
type Gate struct {
	client *redis.Client
	window time.Duration
	logger *logging.Logger
	now    func() time.Time
}

func NewGate(client *redis.Client, window time.Duration, logger *logging.Logger) *Gate {
	if client == nil {
		panic("cooldown: redis client required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{client: client, window: window, logger: logger, now: time.Now}
}

// TryAcquire returns true when the tenant's cooldown window has elapsed,
// atomically recording the new last-sent time. False means another send
// happened too recently and the caller must skip this cycle.
func (g *Gate) TryAcquire(ctx context.Context, tenantID string) (bool, error) {
	now := g.now().Unix()
	res, err := acquireScript.Run(ctx, g.client, []string{key(tenantID)}, now, int64(g.window.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("cooldown: acquire: %w", err)
	}
	acquired := res == 1
	if !acquired {
		g.logger.Debug("cooldown gate closed", "tenant_id", tenantID)
	}
	return acquired, nil
}

// Ready reports whether the window has elapsed without acquiring. The poll
// cycle uses it to bail out cheaply before fetching messages; the atomic
// TryAcquire still guards the actual send.
func (g *Gate) Ready(ctx context.Context, tenantID string) (bool, error) {
	raw, err := g.client.Get(ctx, key(tenantID)).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("cooldown: read last sent: %w", err)
	}
	return g.now().Unix()-raw >= int64(g.window.Seconds()), nil
}

func key(tenantID string) string {
	return fmt.Sprintf("cooldown:last_sent:%s", tenantID)
}
