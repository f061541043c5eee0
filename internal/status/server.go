/*
Package status implements the ETL's optional operator-facing HTTP server:
liveness/readiness probes and a read-only snapshot of pipeline progress.

Disabled entirely when ETL_STATUS_ADDR is empty — the pipeline itself
never depends on this package being up.
*/
package status

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dkrasnov/filmwork-etl/internal/platform/constants"
	"github.com/dkrasnov/filmwork-etl/internal/platform/middleware"
	"github.com/dkrasnov/filmwork-etl/internal/platform/respond"
	"github.com/dkrasnov/filmwork-etl/internal/state"
)

// # Server

// Server wraps the chi router and [http.Server] for the status surface.
type Server struct {
	httpServer    *http.Server
	log           *slog.Logger
	ready         *atomic.Bool
	cancelLimiter context.CancelFunc
}

// New constructs the status server bound to addr, reading pipeline
// progress from store. ready is flipped true by MarkReady once the index
// provisioner has succeeded at least once. The rate limiter's cleanup
// goroutine runs for the server's lifetime and stops on Shutdown.
func New(addr string, store *state.Store, log *slog.Logger) *Server {
	ready := &atomic.Bool{}
	limiterCtx, cancelLimiter := context.WithCancel(context.Background())

	router := chi.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(log))
	router.Use(middleware.RateLimit(limiterCtx))
	router.Use(middleware.PanicRecovery(log))

	router.Get("/healthz", handleLiveness)
	router.Get("/readyz", handleReadiness(ready))
	router.Get("/status", handleStatus(store))

	return &Server{
		log:           log,
		ready:         ready,
		cancelLimiter: cancelLimiter,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// MarkReady flips the readiness probe to 200. Called once, after the
// first successful index provisioning pass.
func (s *Server) MarkReady() {
	s.ready.Store(true)
}

// ListenAndServe blocks until the server is closed or fails.
func (s *Server) ListenAndServe() error {
	s.log.Info("status_server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiter's cleanup
// goroutine.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancelLimiter()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// # Handlers

func handleLiveness(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, map[string]string{"status": "alive"})
}

func handleReadiness(ready *atomic.Bool) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if !ready.Load() {
			respond.JSON(writer, http.StatusServiceUnavailable, respond.ErrorEnvelope{
				Error: "index provisioning has not completed yet",
				Code:  "NOT_READY",
			})
			return
		}
		respond.OK(writer, map[string]string{"status": "ready"})
	}
}

func handleStatus(store *state.Store) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		respond.OK(writer, store.Snapshot())
	}
}
