package server

import (
	"bgactions/api"
	"bgactions/api/middleware"
	"bgactions/config"
	"bgactions/logger"
	"bgactions/tasks/legacy"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Server wraps http.Server with graceful shutdown capabilities
type Server struct {
	httpServer *http.Server
	tasks      api.TaskService
	config     *config.Config
	logger     *logger.Logger
}

// dependencies contains all the dependencies needed to create a server
type dependencies struct {
	tasks     api.TaskService
	executors api.ExecutorCatalog
	config    *config.Config
	logger    *logger.Logger
}

// New creates a new server with all HTTP configuration
func New(svc api.TaskService, executors api.ExecutorCatalog, cfg *config.Config, lg *logger.Logger) *Server {
	deps := &dependencies{
		tasks:     svc,
		executors: executors,
		config:    cfg,
		logger:    lg,
	}

	// Create router with all routes and middleware
	handler := newRouter(deps)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address(),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		tasks:  svc,
		config: cfg,
		logger: lg,
	}
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// newRouter creates and configures the HTTP router with all routes and middleware
func newRouter(deps *dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", api.NewHealthHandler(deps.config, deps.tasks, deps.executors, deps.logger))
	mux.HandleFunc("/tasks", api.NewTaskListHandler(deps.tasks, deps.logger))
	mux.HandleFunc("/tasks/{id}", api.NewTaskHandler(deps.tasks, deps.executors, deps.logger))
	mux.HandleFunc("/tasks/{id}/start", api.NewStartHandler(deps.tasks, deps.logger))
	mux.HandleFunc("/tasks/{id}/stop", api.NewStopHandler(deps.tasks, deps.logger))
	mux.HandleFunc("/tasks/{id}/notification", api.NewNotificationHandler(deps.tasks, deps.logger))
	mux.HandleFunc("/stop-all", api.NewStopAllHandler(deps.tasks, deps.logger))

	// Deprecated single-task API
	facade := legacy.New(deps.tasks, deps.logger)
	mux.HandleFunc("/legacy/start", api.NewLegacyStartHandler(facade, deps.executors, deps.logger))
	mux.HandleFunc("/legacy/stop", api.NewLegacyStopHandler(facade, deps.logger))
	mux.HandleFunc("/legacy/status", api.NewLegacyStatusHandler(facade, deps.logger))
	mux.HandleFunc("/legacy/notification", api.NewLegacyNotificationHandler(facade, deps.logger))

	return applyMiddleware(mux, deps.logger)
}

// applyMiddleware wraps the handler with all necessary middleware
func applyMiddleware(handler http.Handler, lg *logger.Logger) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	wrapped := handler

	// Request logging middleware
	wrapped = middleware.LoggingMiddleware(lg)(wrapped)

	return wrapped
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	failed := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", map[string]any{
			"address": s.config.Address(),
		})

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", map[string]any{
				"error": err.Error(),
			})
			failed <- err
		}
	}()

	select {
	case <-stop:
		s.logger.Info("Shutting down server")
	case err := <-failed:
		return err
	}

	return s.Shutdown()
}

// Shutdown stops accepting requests and then stops every running task, both
// within the configured shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if err := s.tasks.StopAllTasks(ctx); err != nil {
		s.logger.Error("Failed to stop running tasks", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
