// Package api is the JSON presentation layer over the timeline service.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/dasha/internal/app"
	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Compute(ctx context.Context, req service.Request) (dasha.Timeline, error)
	ComputeBatch(ctx context.Context, reqs []service.Request) ([]service.Result, error)
	Systems() []service.SystemInfo
	System(name string) (service.SystemInfo, error)
	Sequence(system, lord string) ([]string, error)
}

// Server wires HTTP routes for the timeline API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	timelineHandler *TimelineHandler
	systemsHandler  *SystemsHandler
	logger          logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.logger = log
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.timelineHandler = NewTimelineHandler(deps, s.logger)
	s.systemsHandler = NewSystemsHandler(deps)
	return s
}

// Register attaches middleware and all API routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Route("/systems", func(r chi.Router) {
		r.Get("/", s.systemsHandler.HandleList)
		r.Get("/{name}", s.systemsHandler.HandleGet)
		r.Get("/{name}/sequence", s.systemsHandler.HandleSequence)
	})
	r.Post("/timeline", s.timelineHandler.HandleTimeline)
	r.Post("/timelines", s.timelineHandler.HandleBatch)
}

// Handler returns a router with every API route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: RequestIDFrom(r.Context())})
}
