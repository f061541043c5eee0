/*
Etl is the entry point for the filmwork catalog's incremental ETL process.

It reads the normalized movie catalog from PostgreSQL and keeps a search
index service in sync, one tick at a time: fetch rows changed since the
last tick, fan genre/person edits out onto the movies that reference
them, transform each row into its index document shape, and bulk-upsert
the result.

Usage:

	go run cmd/etl/main.go

The environment variables are documented in internal/platform/config.

Startup Sequence:

 1. Logger: Initialize structured JSON logging (slog).
 2. Config: Load and validate environment variables.
 3. State: Open the on-disk checkpoint store.
 4. Catalog: Establish the PostgreSQL connection pool.
 5. Index: Provision the search indexes and construct the bulk loader.
 6. Wiring: Assemble the tick scheduler from producers/transformers/loaders.
 7. Status: Start the optional operator status server and heartbeat.
 8. Run: Drive ticks until SIGINT/SIGTERM, finishing the in-flight batch.

No business logic lives here. This file is strictly for orchestration and
wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkrasnov/filmwork-etl/internal/catalog"
	"github.com/dkrasnov/filmwork-etl/internal/index"
	"github.com/dkrasnov/filmwork-etl/internal/pipeline"
	"github.com/dkrasnov/filmwork-etl/internal/platform/config"
	"github.com/dkrasnov/filmwork-etl/internal/platform/constants"
	pgstore "github.com/dkrasnov/filmwork-etl/internal/platform/postgres"
	redisstore "github.com/dkrasnov/filmwork-etl/internal/platform/redis"
	"github.com/dkrasnov/filmwork-etl/internal/state"
	"github.com/dkrasnov/filmwork-etl/internal/status"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("etl_initializing", slog.String("version", constants.AppVersion))

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("state_folder", cfg.StateStorageFolder),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. State Store
	store, err := state.Open(cfg.StateStorageFolder)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	log.Info("state_store_opened",
		slog.Time("last_full_sync_started_at", store.LastFullSyncStartedAt()))

	// # 4. PostgreSQL
	pool, err := pgstore.NewPool(startupCtx, cfg.PostgresDSN(), cfg.PGTimeout(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	reader := catalog.NewReader(pool, cfg.FetchFromPGBy)

	// # 5. Index Service
	bulkClient := index.NewBulkClient(cfg.ElasticURL, cfg.ESConnectTimeout())
	provisioner := index.NewProvisioner(cfg.ElasticURL, cfg.ESConnectTimeout())

	// Provisioning is bounded by ES_STARTUP_TIMEOUT inside Ensure, not by
	// the shorter startupCtx deadline.
	provisionCtx := context.Background()
	if err := provisioner.Ensure(provisionCtx, cfg.ESStartupTimeout(), cfg.ESMoviesIndex, index.MoviesMapping); err != nil {
		return fmt.Errorf("provision movies index: %w", err)
	}
	if err := provisioner.Ensure(provisionCtx, cfg.ESStartupTimeout(), cfg.ESGenreIndex, index.GenresMapping); err != nil {
		return fmt.Errorf("provision genres index: %w", err)
	}
	if err := provisioner.Ensure(provisionCtx, cfg.ESStartupTimeout(), cfg.ESPersonsIndex, index.PersonsMapping); err != nil {
		return fmt.Errorf("provision persons index: %w", err)
	}
	log.Info("indexes_provisioned",
		slog.String("movies", cfg.ESMoviesIndex),
		slog.String("genres", cfg.ESGenreIndex),
		slog.String("persons", cfg.ESPersonsIndex),
	)

	submit := func(ctx context.Context, indexName string, docs []index.Document) error {
		return bulkClient.Bulk(ctx, indexName, docs)
	}
	moviesLoader := index.NewLoader(submit, cfg.ESMoviesIndex, cfg.LoadToESBy)
	genresLoader := index.NewLoader(submit, cfg.ESGenreIndex, cfg.LoadToESBy)
	personsLoader := index.NewLoader(submit, cfg.ESPersonsIndex, cfg.LoadToESBy)

	// # 6. Heartbeat (optional)
	var heartbeat *pipeline.HeartbeatPublisher
	if cfg.HeartbeatRedisURL != "" {
		client, err := redisstore.NewClient(startupCtx, cfg.HeartbeatRedisURL, log)
		if err != nil {
			return fmt.Errorf("connect to heartbeat redis: %w", err)
		}
		defer func() {
			log.Info("closing redis client")
			if cerr := client.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
		heartbeat = pipeline.NewHeartbeatPublisher(client, log)
	} else {
		heartbeat = pipeline.NewHeartbeatPublisher(nil, log)
	}

	// # 7. Scheduler
	scheduler := pipeline.New(
		reader, store,
		moviesLoader, genresLoader, personsLoader,
		cfg.PGTimeout(), cfg.UpdatesCheckInterval(),
		log,
		heartbeat.Publish,
	)

	// # 8. Status Server (optional)
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	var statusServer *status.Server
	statusErr := make(chan error, 1)
	if cfg.StatusAddr != "" {
		statusServer = status.New(cfg.StatusAddr, store, log)
		statusServer.MarkReady()

		go func() {
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				statusErr <- fmt.Errorf("status_server_crash: %w", err)
			}
		}()
	}

	// # 9. Lifecycle Handling
	pipelineErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		pipelineErr <- scheduler.Run(appCtx)
	}()

	log.Info("etl_running",
		slog.Duration("check_interval", cfg.UpdatesCheckInterval()))

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-pipelineErr:
		if err != nil {
			return fmt.Errorf("pipeline tick failed: %w", err)
		}
	case err := <-statusErr:
		return err
	}

	// Cancel only between ticks: the scheduler itself never abandons an
	// in-flight batch on context cancellation (see internal/pipeline).
	appCancel()
	<-pipelineErr

	if statusServer != nil {
		log.Info("shutting_down_status_server", slog.Duration("timeout", constants.ShutdownTimeout))
		if err := statusServer.Shutdown(constants.ShutdownTimeout); err != nil {
			return fmt.Errorf("status_server_shutdown_failed: %w", err)
		}
	}

	log.Info("graceful_shutdown_complete")
	return nil
}
