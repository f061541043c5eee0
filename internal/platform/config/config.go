/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (catalog pool, index client, state
    store) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the process is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the ETL process.
type Config struct {

	// Process settings
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`

	// StateStorageFolder is the directory the state store's atomic JSON
	// snapshot lives in between ticks.
	StateStorageFolder string `env:"ETL_STATE_STORAGE_FOLDER" envDefault:"state/"`

	// UpdatesCheckIntervalSec is the delay between the end of one tick and
	// the start of the next.
	UpdatesCheckIntervalSec int `env:"UPDATES_CHECK_INTERVAL_SEC" envDefault:"60"`

	// Relational catalog (PostgreSQL)
	PostgresHost     string `env:"POSTGRES_HOST,required"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresDB       string `env:"POSTGRES_DB,required"`
	PostgresUser     string `env:"POSTGRES_USER,required"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,required"`

	// FetchFromPGBy is the page size producers request per catalog query.
	FetchFromPGBy int `env:"FETCH_FROM_PG_BY" envDefault:"100"`

	// PGTimeoutSec bounds both the per-connection statement_timeout and how
	// long producers keep retrying a failed catalog page query.
	PGTimeoutSec int `env:"PG_TIMEOUT_SEC" envDefault:"60"`

	// Search index service (Elasticsearch-compatible)
	ElasticURL string `env:"ELASTIC_URL" envDefault:"http://127.0.0.1:9200"`

	// LoadToESBy is the batch size the bulk loader flushes at.
	LoadToESBy int `env:"LOAD_TO_ES_BY" envDefault:"100"`

	ESMoviesIndex  string `env:"ES_MOVIES_INDEX"  envDefault:"movies"`
	ESGenreIndex   string `env:"ES_GENRE_INDEX"   envDefault:"genres"`
	ESPersonsIndex string `env:"ES_PERSONS_INDEX" envDefault:"persons"`

	// ESConnectTimeoutSec bounds a single bulk request.
	ESConnectTimeoutSec int `env:"ES_CONNECT_TIMEOUT" envDefault:"60"`

	// ESStartupTimeoutSec bounds how long the provisioner retries index
	// creation while the index service is still coming up.
	ESStartupTimeoutSec int `env:"ES_STARTUP_TIMEOUT" envDefault:"120"`

	// Operator status server (optional; the default ":9300" listens on all
	// interfaces, an empty value disables it)
	StatusAddr string `env:"ETL_STATUS_ADDR" envDefault:":9300"`

	// HeartbeatRedisURL enables the tick-heartbeat side channel when set.
	HeartbeatRedisURL string `env:"ETL_HEARTBEAT_REDIS_URL"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the process is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the process is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// # Derived Settings

// UpdatesCheckInterval is UpdatesCheckIntervalSec as a [time.Duration].
func (c *Config) UpdatesCheckInterval() time.Duration {
	return time.Duration(c.UpdatesCheckIntervalSec) * time.Second
}

// PGTimeout is PGTimeoutSec as a [time.Duration].
func (c *Config) PGTimeout() time.Duration {
	return time.Duration(c.PGTimeoutSec) * time.Second
}

// ESConnectTimeout is ESConnectTimeoutSec as a [time.Duration].
func (c *Config) ESConnectTimeout() time.Duration {
	return time.Duration(c.ESConnectTimeoutSec) * time.Second
}

// ESStartupTimeout is ESStartupTimeoutSec as a [time.Duration].
func (c *Config) ESStartupTimeout() time.Duration {
	return time.Duration(c.ESStartupTimeoutSec) * time.Second
}

// PostgresDSN assembles a libpq-style connection string from the discrete
// Postgres fields.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB,
	)
}
