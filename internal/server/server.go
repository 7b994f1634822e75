// Package server is the local HTTP + WebSocket surface that presentation
// clients use to read the dashboard and trigger its actions.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/server/handler"
	"github.com/alanyoungcy/tradedesk/internal/server/middleware"
	"github.com/alanyoungcy/tradedesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string
	// APIKey guards every route except health and metrics; empty disables it.
	APIKey       string
	RateLimitRPS float64
	RateBurst    int
}

// Handlers aggregates the route handlers. Nil members are not registered.
type Handlers struct {
	Health    *handler.HealthHandler
	Dashboard *handler.DashboardHandler
	History   *handler.HistoryHandler
	Metrics   http.Handler
}

// Server is the HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and wraps them in the middleware chain.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, h, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, h Handlers, hub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	if d := h.Dashboard; d != nil {
		mux.HandleFunc("GET /api/view/snapshot", d.Snapshot)
		mux.HandleFunc("GET /api/view/orders", d.OrderPage)
		mux.HandleFunc("POST /api/view/orders", d.SubmitOrder)
		mux.HandleFunc("GET /api/view/chart", d.Chart)
		mux.HandleFunc("POST /api/view/simulation/trade", d.SimulateTrade)
		mux.HandleFunc("POST /api/view/chat", d.Chat)
		mux.HandleFunc("POST /api/view/refresh/{resource}", d.Refresh)
	}

	if hist := h.History; hist != nil {
		mux.HandleFunc("GET /api/history/prices", hist.Prices)
		mux.HandleFunc("GET /api/history/orders", hist.Orders)
		mux.HandleFunc("GET /api/history/events", hist.Events)
		mux.HandleFunc("GET /api/history/latest", hist.LatestPrices)
	}

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateBurst)
	}

	var out http.Handler = mux
	out = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(out)
	out = middleware.RateLimit(limiter)(out)
	out = middleware.Logging(logger)(out)
	out = middleware.CORS(cfg.CORSOrigins)(out)
	return out
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
