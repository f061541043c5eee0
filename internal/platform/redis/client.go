/*
Package redis provides a managed client for the tick-heartbeat side channel.

The scheduler refreshes a single short-TTL key after every completed tick
(see internal/platform/constants.RedisKeyHeartbeat) so an external dashboard
or liveness probe can tell the process is still making progress without
having to parse its logs. This dependency is optional — the ETL runs fine
with ETL_HEARTBEAT_REDIS_URL unset, it just loses that external signal.

Core Responsibilities:

  - Connectivity: Parses a Redis URL and validates it with a ping at startup.
  - Safety: Short dial/read/write timeouts so a stalled Redis never blocks a tick.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Opinionated default timeouts for Redis operations.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// NewClient parses a Redis URL and returns a ready-to-use client.
//
// # Parameters
//   - context: Context for the initial ping.
//   - redisURL: Redis connection URL.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	// A single heartbeat key needs no real pooling; one connection suffices.
	options.PoolSize = 2
	options.MinIdleConns = 1

	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	client := redis.NewClient(options)

	// Validate connectivity immediately at startup.
	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis heartbeat client connected",
		slog.String("addr", options.Addr),
	)

	return client, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
