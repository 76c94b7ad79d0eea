package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mcpdock/internal/deploy"
	"mcpdock/internal/health"
	"mcpdock/internal/registry"
	"mcpdock/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware
	RequestTimeout = 60 * time.Second

	// Rate limiting - requests per minute
	GlobalRateLimit  = 60
	WebhookRateLimit = 6
)

// EventLister serves the deployment event log to the events endpoint.
type EventLister interface {
	ListEvents(ctx context.Context, server string, limit int) ([]storage.Event, error)
}

// Server is the HTTP face of the lifecycle subsystem.
type Server struct {
	Records *registry.Store
	Manager *deploy.Manager
	Monitor *health.Monitor
	Events  EventLister
	Logger  *slog.Logger

	// WebhookSecret signs push-triggered redeploys. The webhook route is
	// not mounted when it is empty.
	WebhookSecret string

	// TestMode disables rate limiting so handler tests run unthrottled.
	TestMode bool

	// inflight refuses a second deploy for a name already being deployed,
	// so callers get an immediate 429 instead of queueing on the
	// manager's lock.
	inflight *deploy.LockManager
	deployWg sync.WaitGroup
}

// NewServer wires the HTTP layer to its collaborators.
func NewServer(records *registry.Store, manager *deploy.Manager, monitor *health.Monitor, events EventLister, logger *slog.Logger) *Server {
	return &Server{
		Records:  records,
		Manager:  manager,
		Monitor:  monitor,
		Events:   events,
		Logger:   logger,
		inflight: deploy.NewLockManager(),
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	if !s.TestMode {
		r.Use(NewRateLimitMiddleware("global", GlobalRateLimit, s.Logger))
	}

	r.Get("/healthz", s.HandleLiveness)
	r.Get("/health", s.HandleHealthAll)

	r.Route("/servers", func(r chi.Router) {
		r.Get("/", s.HandleListServers)
		r.Post("/", s.HandleUpsertServer)
		r.Route("/{serverName}", func(r chi.Router) {
			r.Get("/", s.HandleGetServer)
			r.Delete("/", s.HandleDeleteServer)
			r.Post("/deploy", s.HandleDeploy)
			r.Post("/undeploy", s.HandleUndeploy)
			r.Get("/health", s.HandleHealthOne)
			r.Get("/events", s.HandleEvents)
		})
	})

	// Webhook redeploys are opt-in: no secret, no route
	if s.WebhookSecret != "" {
		webhook := r.With()
		if !s.TestMode {
			webhook = r.With(NewRateLimitMiddleware("webhook", WebhookRateLimit, s.Logger))
		}
		webhook.Post("/hooks/{serverName}", s.HandleWebhook)
	}

	return r
}

// Start starts the HTTP server
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("Starting server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return server.ListenAndServe()
}

// WaitForDeployments waits for all in-flight async deployments to complete.
// This is primarily useful for testing.
func (s *Server) WaitForDeployments() {
	s.deployWg.Wait()
}

// Shutdown waits for in-flight deployments before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.deployWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
