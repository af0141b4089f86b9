package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vawtech/presence/pkg/auth"
	"github.com/vawtech/presence/pkg/config"
	"github.com/vawtech/presence/pkg/database"
	apperrors "github.com/vawtech/presence/pkg/errors"
	"github.com/vawtech/presence/pkg/logging"
	"github.com/vawtech/presence/pkg/metrics"
	"github.com/vawtech/presence/pkg/services"
	"github.com/vawtech/presence/pkg/websocket"
)

// Server is the HTTP surface of the presence engine
type Server struct {
	cfg        *config.Config
	router     chi.Router
	httpServer *http.Server

	db         *database.Database
	service    services.PresenceService
	hub        *websocket.Hub
	tokens     *auth.TokenManager
	metrics    *metrics.Metrics
	registry   *prometheus.Registry
	errHandler *apperrors.Handler
}

// NewServer assembles the router. tokens may be nil to disable
// authentication; registry may be nil to skip the /metrics endpoint.
func NewServer(
	cfg *config.Config,
	db *database.Database,
	service services.PresenceService,
	hub *websocket.Hub,
	tokens *auth.TokenManager,
	m *metrics.Metrics,
	registry *prometheus.Registry,
) *Server {
	s := &Server{
		cfg:        cfg,
		db:         db,
		service:    service,
		hub:        hub,
		tokens:     tokens,
		metrics:    m,
		registry:   registry,
		errHandler: apperrors.NewHandler(true),
	}
	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(TraceIDMiddleware)
	r.Use(RequestLogger)
	r.Use(MetricsMiddleware(s.metrics))
	r.Use(Recoverer(s.errHandler))

	r.Get("/healthz", s.handleHealth)

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	if s.hub != nil {
		wsHandler := websocket.NewClientHandler(s.hub, s.tokens)
		r.Get("/ws", wsHandler.ServeHTTP)
	}

	presenceHandlers := NewPresenceHandlers(
		s.service,
		s.errHandler,
		time.Duration(s.cfg.Presence.DefaultBreakSeconds)*time.Second,
	)

	r.Route("/api/presence", func(api chi.Router) {
		api.Use(AuthMiddleware(s.tokens, s.errHandler))
		RegisterPresenceRoutes(api, presenceHandlers, s.errHandler)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC(),
	})
}

// Router exposes the assembled router, mainly for tests
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logging.Info("http server listening", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
