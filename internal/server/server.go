package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Davincible/responses-go/internal/client"
	"github.com/Davincible/responses-go/internal/config"
	"github.com/Davincible/responses-go/internal/handlers"
	"github.com/Davincible/responses-go/internal/middleware"
)

type Server struct {
	config *config.Manager
	client *client.Client
	logger *slog.Logger
	server *http.Server
}

func New(configManager *config.Manager, c *client.Client, logger *slog.Logger) *Server {
	return &Server{
		config: configManager,
		client: c,
		logger: logger,
	}
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	addr := net.JoinHostPort(cfg.Relay.Host, strconv.Itoa(cfg.Relay.Port))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting server", "address", addr, "providers", s.client.Registry().List())

	errCh := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Server is shutting down...")

	// Create a deadline to wait for.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Handler returns the relay routes wrapped in their middleware chains.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	registry := s.client.Registry()

	// Create handlers
	proxyHandler := handlers.NewProxyHandler(s.client, s.logger)
	healthHandler := handlers.NewHealthHandler(registry, s.logger)
	modelsHandler := handlers.NewModelsHandler(registry, s.logger)

	// Setup middleware chains
	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)

	// Apply middleware chains to routes
	mux.Handle("/health", middlewareSet.HealthChain().Handler(healthHandler))
	mux.Handle("/v1/models", middlewareSet.DefaultChain().Handler(modelsHandler))
	mux.Handle("/v1/responses", middlewareSet.DefaultChain().Handler(proxyHandler))

	return mux
}
