/*
Package constants provides centralized, immutable values for the ETL process.

It defines default timeouts and cross-cutting keys shared between the
pipeline and its optional operator-facing status server.

Using this package ensures magic strings and magic numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "filmwork-etl"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// ShutdownTimeout is how long the status server waits for in-flight requests
	// to complete when the process receives a termination signal.
	ShutdownTimeout = 10 * time.Second
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// # JSON Field Identifiers

const (
	FieldError   = "error"
	FieldCode    = "code"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldStatus  = "status"
)

// # Catalog Schema

const (
	// SchemaContent is the Postgres schema holding the normalized movie catalog.
	SchemaContent = "content"
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the sustained per-IP request rate allowed
	// against the status server.
	DefaultRateLimitRPS = 5

	// DefaultRateLimitBurst is the token bucket size layered on top of
	// DefaultRateLimitRPS, absorbing a monitoring tool's occasional burst
	// (e.g. a dashboard polling /status and /healthz back to back).
	DefaultRateLimitBurst = 10

	// RateLimitClientTTL is how long an idle client's bucket is retained
	// before the cleanup routine evicts it.
	RateLimitClientTTL = 10 * time.Minute

	// RateLimitCleanupInterval is how often the eviction sweep runs.
	RateLimitCleanupInterval = time.Minute
)

// # Redis Key Prefixes

const (
	// RedisKeyHeartbeat is the short-TTL key the scheduler refreshes after
	// every completed tick, for external dashboards to poll.
	RedisKeyHeartbeat = "etl:heartbeat"
)
