// Package server exposes the HTTP surface: REST resources over the store,
// the command endpoints, the collaboration endpoints with SSE streaming, the
// websocket upgrade, and operational endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tbayops/stormdesk/internal/broadcast"
	"github.com/tbayops/stormdesk/internal/collab"
	"github.com/tbayops/stormdesk/internal/config"
	"github.com/tbayops/stormdesk/internal/metrics"
	"github.com/tbayops/stormdesk/internal/ops"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap"
)

// Deps carries the wired components the handlers operate on.
type Deps struct {
	Store        store.Store
	Executor     *ops.Executor
	Orchestrator *collab.Orchestrator
	Hub          *broadcast.Hub
	Logger       *zap.Logger
}

// Server is the HTTP listener.
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// New builds the router and the listener.
func New(cfg config.ServerConfig, deps Deps) *Server {
	h := &handlers{
		store:        deps.Store,
		executor:     deps.Executor,
		orchestrator: deps.Orchestrator,
		log:          deps.Logger.Named("server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/ws", broadcast.ServeWS(deps.Hub, deps.Logger, cfg.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.listIncidents)
			r.Post("/", h.createIncident)
			r.Get("/{id}", h.getIncident)
			r.Delete("/{id}", h.deleteIncident)
		})
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.listAssets)
			r.Get("/{id}", h.getAsset)
		})
		r.Get("/summary", h.summary)
		r.Get("/weather", h.weather)

		r.Route("/actions", func(r chi.Router) {
			r.Post("/", h.submitAction)
			r.Get("/log", h.actionLog)
			r.Get("/pending", h.pendingActions)
			r.Post("/{id}/approve", h.approveAction)
			r.Post("/{id}/reject", h.rejectAction)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Post("/session/start", h.startSession)
			r.Post("/session/stop", h.stopSession)
			r.Get("/status", h.sessionStats)
			r.Get("/messages", h.recentMessages)
			r.Get("/collaborate", h.collaborate)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:              cfg.Listen,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: deps.Logger.Named("server"),
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until the listener stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("Request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
