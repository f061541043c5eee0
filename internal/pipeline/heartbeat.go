package pipeline

import (
	stdcontext "context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkrasnov/filmwork-etl/internal/platform/constants"
)

// heartbeatTTL bounds how stale an external dashboard's last-seen value
// can get before it should treat the process as gone.
const heartbeatTTL = 5 * time.Minute

// HeartbeatPublisher refreshes a short-TTL Redis key after every tick.
// A nil client (ETL_HEARTBEAT_REDIS_URL unset) makes Publish a no-op.
type HeartbeatPublisher struct {
	client *redis.Client
	log    *slog.Logger
}

// NewHeartbeatPublisher wraps client, which may be nil.
func NewHeartbeatPublisher(client *redis.Client, log *slog.Logger) *HeartbeatPublisher {
	return &HeartbeatPublisher{client: client, log: log}
}

// Publish sets the heartbeat key to the current time. Failures are
// logged and swallowed — the heartbeat is an optional side channel and
// must never fail a tick.
func (h *HeartbeatPublisher) Publish() {
	if h.client == nil {
		return
	}

	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 2*time.Second)
	defer cancel()

	if err := h.client.Set(ctx, constants.RedisKeyHeartbeat, time.Now().UTC().Format(time.RFC3339), heartbeatTTL).Err(); err != nil {
		h.log.Warn("heartbeat_publish_failed", slog.Any("error", err))
	}
}
