// Package web provides the HTTP API for spreadsheet import sessions.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/JonMunkholm/facturador/internal/config"
	"github.com/JonMunkholm/facturador/internal/core"
	mw "github.com/JonMunkholm/facturador/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AttemptLister reads the journaled attempts of a session.
type AttemptLister interface {
	Attempts(ctx context.Context, sessionID string, limit int) ([]core.Attempt, error)
}

// Options holds the optional collaborators of a Server.
type Options struct {
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler

	// Attempts enables GET /api/sessions/{id}/attempts when non-nil.
	Attempts AttemptLister
}

// Server is the HTTP server for import sessions.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	metrics  http.Handler
	attempts AttemptLister
	router   *chi.Mux
	server   *http.Server

	// closing ends open event streams on shutdown.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, opts Options) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		metrics:  opts.Metrics,
		attempts: opts.Attempts,
		router:   chi.NewRouter(),
		closing:  make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.RequestOrigin)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/form-fields", s.handleFormFields)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/events", s.handleEvents)
			r.Post("/reset", s.handleReset)

			if s.attempts != nil {
				r.Get("/attempts", s.handleAttempts)
			}

			// Parsing and issuance hit the decoder and the issuance service.
			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(mw.NewRateLimiter(s.cfg.Rate.UploadLimit).Middleware)
				}
				r.Post("/parse", s.handleParse)
				r.Post("/submit", s.handleSubmitAll)
				r.Post("/rows/{rowID}/submit", s.handleSubmitRow)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. Event streams are closed first;
// http.Server.Shutdown does not interrupt active handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
