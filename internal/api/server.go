package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/docgen/internal/coordinator"
	"github.com/seantiz/docgen/internal/engine"
	"github.com/seantiz/docgen/internal/generator"
	"github.com/seantiz/docgen/internal/model"
	"github.com/seantiz/docgen/internal/store"
	"github.com/seantiz/docgen/internal/wait"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	// defaultSyncTimeout is the polling budget for synchronous requests when
	// none is configured.
	defaultSyncTimeout = 60 * time.Second
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router      *chi.Mux
	store       store.Store
	generators  *generator.Registry
	engine      *engine.Engine
	coordinator *coordinator.Coordinator
	logger      *slog.Logger
	addr        string

	syncTimeout    time.Duration
	defaultService string
	newStrategy    func(budget time.Duration) wait.Strategy
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, s store.Store, gens *generator.Registry, eng *engine.Engine, coord *coordinator.Coordinator, logger *slog.Logger) *Server {
	srv := &Server{
		router:         chi.NewRouter(),
		store:          s,
		generators:     gens,
		engine:         eng,
		coordinator:    coord,
		logger:         logger,
		addr:           addr,
		syncTimeout:    defaultSyncTimeout,
		defaultService: model.ServiceLocal,
		newStrategy: func(budget time.Duration) wait.Strategy {
			return wait.NewBackoff(budget)
		},
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// SetSyncTimeout sets the polling budget for synchronous document requests.
func (s *Server) SetSyncTimeout(d time.Duration) {
	if d > 0 {
		s.syncTimeout = d
	}
}

// SetDefaultService sets the service type used when a request names none.
func (s *Server) SetDefaultService(service string) {
	if service != "" {
		s.defaultService = service
	}
}

// SetStrategy replaces the wait strategy factory used for synchronous
// requests.
func (s *Server) SetStrategy(f func(budget time.Duration) wait.Strategy) {
	if f != nil {
		s.newStrategy = f
	}
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/generators", s.handleListGenerators)
	s.router.Get("/v1/stats", s.handleGetStats)

	s.router.Route("/v1/documents", func(r chi.Router) {
		r.Post("/", s.handleCreateDocument)
		r.Post("/async", s.handleAsyncDocument)
		r.Get("/", s.handleListDocuments)
		r.Get("/{id}", s.handleGetDocument)
		r.Get("/{id}/content", s.handleGetContent)
		r.Get("/{id}/events", s.handleStreamEvents)
		r.Delete("/{id}", s.handleDeleteDocument)
	})

	s.router.Route("/v1/callbacks/{id}", func(r chi.Router) {
		r.Post("/result", s.handleResultCallback)
		r.Post("/error", s.handleErrorCallback)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// No write timeout is set: synchronous document requests block for up to the
// sync timeout and event streams are long-lived.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
