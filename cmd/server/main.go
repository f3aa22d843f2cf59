// PromoReels - BFF for the AI promotional-video authoring tool
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/akrtake/PromoReels/internal/api"
	"github.com/akrtake/PromoReels/internal/config"
	"github.com/akrtake/PromoReels/internal/gateway"
	"github.com/akrtake/PromoReels/internal/identity"
	"github.com/akrtake/PromoReels/internal/metrics"
	"github.com/akrtake/PromoReels/internal/middleware"
	"github.com/akrtake/PromoReels/internal/store"
	"github.com/akrtake/PromoReels/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCleanup := config.SetupLogger(cfg.LogFile, slog.LevelInfo)
	slog.SetDefault(logger)
	defer func() {
		if closeErr := logCleanup(); closeErr != nil {
			slog.Error("Failed to close log file", "error", closeErr)
		}
	}()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	provider := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.APIKey, cfg.Identity.RequestTimeout, logger)
	m := metrics.New()

	// Initialize handlers.
	gatewayHandler := gateway.NewHandler(provider, repo, m, cfg.IsDevelopment(), cfg.Identity.AdminHeaderValue)
	healthHandler := api.NewHealthHandler(repo)

	agentProxy, err := gateway.NewAgentProxy(cfg.AgentAPIURL, m)
	if err != nil {
		slog.Error("Failed to initialize agent proxy", "error", err, "target", cfg.AgentAPIURL)
		os.Exit(1)
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	gatewayHandler.RegisterRoutes(r)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// Agent API proxy (bearer token derived from the session cookie).
	r.With(gatewayHandler.RequireAPI).Handle("/apps/*", agentProxy)
	r.With(gatewayHandler.RequireAPI).Handle("/run_sse", agentProxy)

	// Protected SPA routes with index fallback.
	spa := gatewayHandler.RequirePage(web.SPAHandler())
	r.Handle("/", spa)
	r.Handle("/app", spa)
	r.Handle("/app/*", spa)

	// Create server.
	// Note: SSE pass-through requires no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	// Start revocation sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartRevocationSweeper(ctx, repo, cfg.RevocationSweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
