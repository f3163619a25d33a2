package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/pushreps/internal/metrics"
	"github.com/claude/pushreps/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notifications is the notification toggle exposed over the API.
type Notifications interface {
	Enabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc           *workout.Service
	notifications Notifications
	log           *slog.Logger
	apiKey        string
	metrics       *metrics.Manager
	router        chi.Router
}

// New creates a new Server with all routes configured.
func New(svc *workout.Service, notifications Notifications, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		svc:           svc,
		notifications: notifications,
		log:           log,
		apiKey:        apiKey,
		router:        chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(s.requestMetrics)
	s.router.Use(CORS)

	s.router.Get("/api/v1/plans", s.handlePlans)

	s.router.Route("/api/v1/session", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Post("/plan", s.handleSelectPlan)
		r.Post("/start", s.handleStart)
		r.Post("/rep", s.handleRep)
		r.Post("/set", s.handleSet)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/reset", s.handleReset)
		r.Post("/tick", s.handleTick)
		r.Post("/retry", s.handleRetry)
	})

	s.router.Get("/api/v1/progress", s.handleProgress)
	s.router.Get("/api/v1/progress/weekly", s.handleWeekly)
	s.router.Get("/api/v1/progress/recent", s.handleRecent)

	s.router.Get("/api/v1/settings/notifications", s.handleGetNotifications)
	s.router.Put("/api/v1/settings/notifications", s.handlePutNotifications)

	// Destructive data endpoints (API key required)
	s.router.Route("/api/v1/data", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Delete("/", s.handleClearData)
		r.Post("/import", s.handleImport)
	})
}

// MountMCP serves an MCP transport at /mcp.
func (s *Server) MountMCP(h http.Handler) {
	s.router.Handle("/mcp", h)
}

// MountMetrics starts counting API requests in m and serves g at /metrics.
// Call it before serving.
func (s *Server) MountMetrics(m *metrics.Manager, g prometheus.Gatherer) {
	s.metrics = m
	s.router.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
