// Persona Lab - AI persona interview server
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

	"github.com/ashureev/persona-lab/internal/api"
	"github.com/ashureev/persona-lab/internal/config"
	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/ashureev/persona-lab/internal/interview"
	"github.com/ashureev/persona-lab/internal/metrics"
	"github.com/ashureev/persona-lab/internal/middleware"
	"github.com/ashureev/persona-lab/internal/persona"
	"github.com/ashureev/persona-lab/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected", "driver", cfg.Store.Driver)

	var generator interview.Generator
	if cfg.GenerationEnabled() {
		gemini, err := interview.NewGeminiClient(ctx, cfg.Gemini)
		if err != nil {
			slog.Error("Failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		generator = gemini
		slog.Info("Gemini client initialized", "model", cfg.Gemini.Model)
	} else {
		slog.Warn("GEMINI_API_KEY not set, interview messages will be rejected")
	}

	// Initialize services.
	personaSvc := persona.NewService(repo)
	interviewSvc := interview.NewService(personaSvc, repo, generator)
	verifier := identity.NewFirebaseVerifier(identity.NewGoogleKeySource("", nil))

	var limiter func(http.Handler) http.Handler
	if cfg.InterviewRateLimit > 0 {
		rl := middleware.NewRateLimiter(cfg.InterviewRateLimit)
		rl.StartCleanup(ctx.Done(), 5*time.Minute)
		limiter = rl.Handler
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(cfg.IsDevelopment())
	healthHandler := api.NewHealthHandler(repo, interviewSvc.GenerationEnabled())
	userHandler := api.NewUserHandler(baseHandler, repo)
	personaHandler := api.NewPersonaHandler(baseHandler, personaSvc)
	interviewHandler := api.NewInterviewHandler(baseHandler, interviewSvc, limiter)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.Recover(cfg.IsDevelopment()))
	r.Use(metrics.InstrumentHandler)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	r.Get("/", baseHandler.Root)
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/api/test", baseHandler.Test)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(verifier, cfg.FirebaseProjectID, cfg.IsDevelopment()))
		userHandler.RegisterRoutes(r)
		personaHandler.RegisterRoutes(r)
		interviewHandler.RegisterRoutes(r)
	})

	r.NotFound(baseHandler.NotFound)

	// Generation can take tens of seconds, so no write timeout.
	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

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

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		return store.NewPostgres(cfg.Store.DatabaseURL)
	case config.StoreFirestore:
		return store.NewFirestore(ctx, cfg.FirebaseProjectID)
	default:
		return store.NewSQLite(cfg.Store.DBPath)
	}
}
