// Rolelab - guided roleplay training session server
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
	"github.com/nkoval/rolelab/internal/ai"
	"github.com/nkoval/rolelab/internal/api"
	"github.com/nkoval/rolelab/internal/catalog"
	"github.com/nkoval/rolelab/internal/chat"
	"github.com/nkoval/rolelab/internal/config"
	"github.com/nkoval/rolelab/internal/identity"
	"github.com/nkoval/rolelab/internal/middleware"
	"github.com/nkoval/rolelab/internal/orchestrator"
	"github.com/nkoval/rolelab/internal/store"
	"github.com/nkoval/rolelab/internal/watch"
	"github.com/nkoval/rolelab/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"turn_limit", cfg.TurnLimit,
		"reflection_min_length", cfg.ReflectionMinLength)

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

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		slog.Error("Failed to load scenario catalog", "error", err)
		os.Exit(1)
	}
	if cat.Len() == 0 {
		slog.Warn("Scenario catalog is empty", "dir", cfg.CatalogDir)
	}

	// Initialize the AI backend (required — persona replies and feedback
	// synthesis both depend on it).
	if !cfg.AIEnabled() {
		slog.Error("GEMINI_API_KEY is not set; the training workflow cannot run without it")
		os.Exit(1)
	}
	gen, err := ai.NewGeminiClient(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	sessions := orchestrator.NewManager(repo, cfg.ReflectionMinLength, logger)
	acquirer := orchestrator.NewAcquirer(repo, gen, logger)
	exchanger := chat.NewExchanger(repo, gen, cat, cfg.TurnLimit, logger)

	// Initialize handlers.
	sessionHandler := api.NewSessionHandler(sessions, cat, exchanger)
	feedbackHandler := api.NewFeedbackHandler(acquirer, repo)
	catalogHandler := api.NewCatalogHandler(cat)
	healthHandler := api.NewHealthHandler(repo, cfg.AIEnabled())
	watchHandler := watch.NewHandler(repo, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterRoutes(r)
	catalogHandler.RegisterRoutes(r)
	sessionHandler.RegisterRoutes(r)
	feedbackHandler.RegisterRoutes(r)

	// WebSocket endpoint for the voice-mode conversation watch.
	r.Get("/ws/conversation", watchHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // feedback synthesis responses can be slow
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
