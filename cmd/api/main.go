package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"appeloffres/api/internal/config"
	"appeloffres/api/internal/handlers"
	"appeloffres/api/internal/repositories"
	"appeloffres/api/internal/services"
	"appeloffres/api/internal/storage"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer pool.Close()

	var blobs storage.Store
	if cfg.Storage.Enabled {
		store, err := storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			log.Fatal("Failed to initialize object storage:", err)
		}
		blobs = store
		logger.Info("object storage enabled", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
	} else {
		blobs = storage.NewMemoryStore()
		logger.Warn("object storage not configured, annexes will be missing from archives")
	}

	analysis, err := services.NewAnalysisCache(cfg.AnalysisCacheSize)
	if err != nil {
		log.Fatal("Failed to create analysis cache:", err)
	}

	deps := handlers.Deps{
		Logger:    logger,
		Demands:   repositories.NewDemandRepository(pool),
		Annexes:   repositories.NewAnnexRepository(pool),
		Companies: repositories.NewCompanyRepository(pool),
		Blobs:     blobs,
		Analysis:  analysis,
	}
	if cfg.AI.Enabled() {
		gen, err := services.NewGeminiGenerator(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model)
		if err != nil {
			log.Fatal("Failed to initialize AI drafting:", err)
		}
		deps.Drafter = services.NewDrafter(gen, services.NewRateLimiter(cfg.AI.RateLimit, cfg.AI.RateLimit))
		logger.Info("AI drafting enabled", "model", cfg.AI.Model)
	} else {
		logger.Warn("GEMINI_API_KEY not set, AI drafting disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("API listening", "addr", cfg.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
