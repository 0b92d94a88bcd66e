package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/folio/internal/auth"
	"github.com/me/folio/internal/config"
	"github.com/me/folio/internal/media"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/internal/ui"
	"github.com/me/folio/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the Folio HTTP server: public site, admin pages and JSON API.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	gate      *auth.Gate
	media     media.Uploader         // optional; nil disables uploads
	checks    map[string]HealthCheck // dependency probes for /healthz
	registry  *prometheus.Registry
	ui        *ui.UI
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithMediaUploader enables POST /api/admin/media.
func WithMediaUploader(u media.Uploader) Option {
	return func(s *Server) {
		s.media = u
	}
}

// WithHealthCheck adds a named dependency probe to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithRegistry sets the Prometheus registry served on /metrics. The server
// registers its own request counter there.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a new Server with all routes registered. Every request passes
// through gate before routing.
func New(cfg config.ServerConfig, st store.Store, gate *auth.Gate, sessions ui.Sessions, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		gate:      gate,
		checks:    map[string]HealthCheck{"store": st.Ping},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	s.ui = ui.New(st, sessions, gate.Policy(), logger)

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	requests := promauto.With(s.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "folio",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger, requests))
	r.Use(s.gate.Middleware)

	// Ops
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// UI routes (HTML)
	s.ui.RegisterRoutes(r)

	// API routes (JSON)
	r.Route("/api", func(r chi.Router) {
		r.NotFound(s.handleAPINotFound)

		// Public content
		r.Get("/projects", s.handlePublicList(model.Projects))
		r.Get("/experiences", s.handlePublicList(model.Experiences))
		r.Get("/education", s.handlePublicList(model.Education))
		r.Get("/skills", s.handlePublicList(model.Skills))
		r.Get("/posts", s.handlePublicList(model.Posts, publishedOnly))
		r.Get("/posts/{slug}", s.handleGetPost)
		r.Post("/contact", s.handleContact)

		// Admin CRUD, one resource per collection
		r.Route("/admin", func(r chi.Router) {
			r.With(guard(RequireIdentity)).Post("/media", s.handleMediaUpload)
			for _, c := range model.Collections() {
				r.Mount("/"+c.Name, NewResource(c, s.store, RequireIdentity, s.logger).Routes())
			}
		})
	})
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, RequestIDFromContext(r.Context()), &model.APIError{
		Code:    model.ErrNotFound,
		Message: "no such endpoint: " + r.Method + " " + r.URL.Path,
	})
}
