package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/better-wallet/smart-account/internal/app"
	"github.com/better-wallet/smart-account/internal/config"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/internal/metrics"
	"github.com/better-wallet/smart-account/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	accounts   *app.AccountService
	metrics    *metrics.Metrics
	limiter    *middleware.RateLimiter
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(
	ctx context.Context,
	cfg *config.Config,
	accounts *app.AccountService,
	m *metrics.Metrics,
) *Server {
	return &Server{
		config:   cfg,
		accounts: accounts,
		metrics:  m,
		limiter:  middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled),
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	mux.HandleFunc("POST /v1/accounts", s.handleDeployAccount)
	mux.HandleFunc("GET /v1/accounts/{addr}", s.handleGetAccount)
	mux.HandleFunc("POST /v1/accounts/{addr}/operation-hash", s.handleOperationHash)
	mux.HandleFunc("POST /v1/accounts/{addr}/operations", s.handleSubmitOperation)
	mux.HandleFunc("GET /v1/accounts/{addr}/receipts", s.handleListReceipts)

	mux.HandleFunc("POST /v1/recovery/{kind}/hash", s.handleRecoveryHash)
	mux.HandleFunc("POST /v1/recovery/{kind}/start", s.handleStartRecovery)
	mux.HandleFunc("POST /v1/recovery/{kind}/execute", s.handleExecuteRecovery)
	mux.HandleFunc("GET /v1/recovery/{kind}/{addr}", s.handleRecoveryStatus)

	// Chain: RequestID -> AccessLog -> RateLimit -> LimitBody -> Routes
	return middleware.RequestID(
		middleware.AccessLog(s.metrics)(
			s.limiter.Limit(
				middleware.LimitBody(mux))))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting server", "port", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
