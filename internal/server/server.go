// ABOUTME: Server orchestrator that wires the store, executor, and dispatch core
// ABOUTME: Manages the HTTP listener and graceful shutdown lifecycle

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/taskdesk/internal/config"
	"github.com/2389/taskdesk/internal/dispatch"
	"github.com/2389/taskdesk/internal/executor"
	"github.com/2389/taskdesk/internal/store"
)

// Server owns the taskdesk components: data store, remote executor,
// dispatch controller, and the HTTP API the dashboard calls.
type Server struct {
	config     *config.Config
	store      store.Store
	controller *dispatch.Controller
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server from the given configuration, initializing the
// store and the remote executor.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	exec, err := executor.NewChatModelExecutor(ctx, cfg.Executor)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("initializing executor: %w", err)
	}

	return newWithDeps(cfg, s, exec, logger), nil
}

// newWithDeps wires a Server from pre-built dependencies. Tests use it to
// inject mock stores and stub executors.
func newWithDeps(cfg *config.Config, st store.Store, exec executor.Executor, logger *slog.Logger) *Server {
	engine := dispatch.NewEngine(st, cfg.Dispatch.ReserveRetries)
	controller := dispatch.NewController(st, engine, exec, cfg.Dispatch.DefaultTimeout)

	srv := &Server{
		config:     cfg,
		store:      st,
		controller: controller,
		logger:     logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv
}

// registerRoutes attaches all HTTP handlers to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/dispatch", s.handleDispatch)
	mux.HandleFunc("/api/agents", s.handleAgents)
	mux.HandleFunc("/api/agents/", s.handleAgentByID)
	mux.HandleFunc("/api/requests", s.handleRequests)
	mux.HandleFunc("/api/requests/", s.handleRequestByID)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleReady)
}

// Run serves HTTP until ctx is cancelled or the listener fails, then
// performs a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddr, err)
	}

	s.logger.Info("HTTP server listening", "addr", s.config.Server.HTTPAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case serverErr = <-errCh:
		s.logger.Error("HTTP server failed", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down HTTP server: %w", err))
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// handleHealth handles GET /health liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReady handles GET /health/ready readiness checks: the server is
// ready when the store answers queries.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListAgents(r.Context()); err != nil {
		s.logger.Error("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
