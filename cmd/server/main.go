package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/taskpass/server/internal/api"
	"github.com/taskpass/server/internal/auth"
	"github.com/taskpass/server/internal/storage"
	"github.com/taskpass/server/internal/ui"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Production() && cfg.AuthSecret == "dev-secret-change-me" {
		slog.Error("AUTH_SECRET must be set in production")
		os.Exit(1)
	}

	// Setup storage backend
	var backend storage.Backend
	switch cfg.StorageMode {
	case "s3":
		s3Backend, err := storage.NewS3Backend(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.UseSSL)
		if err != nil {
			slog.Error("Failed to create S3 backend", "error", err)
			os.Exit(1)
		}
		backend = s3Backend
		slog.Info("Using S3 storage", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	case "filesystem":
		fsBackend, err := storage.NewFilesystemBackend(cfg.DataPath)
		if err != nil {
			slog.Error("Failed to create filesystem backend", "error", err)
			os.Exit(1)
		}
		backend = fsBackend
		slog.Info("Using filesystem storage", "path", cfg.DataPath)
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		backend = storage.NewRedisBackend(redisClient)
		slog.Info("Using Redis storage", "addr", cfg.Redis.Addr)
	default:
		backend = storage.NewMemoryBackend()
		slog.Warn("Using in-memory storage (not persistent)")
	}

	store := storage.NewStore(backend)

	// Seed the holiday calendar
	if cfg.HolidaysFile != "" {
		holidays, err := loadHolidays(cfg.HolidaysFile)
		if err != nil {
			slog.Error("Failed to load holidays", "error", err)
			os.Exit(1)
		}
		if err := store.SeedHolidays(context.Background(), holidays); err != nil {
			slog.Error("Failed to seed holidays", "error", err)
			os.Exit(1)
		}
		slog.Info("Holiday calendar seeded", "count", len(holidays))
	}

	// Setup services
	sessions := auth.NewSessions(cfg.AuthSecret, cfg.Production())
	ceremonies := auth.NewCeremonies(auth.CeremonyConfig{
		RPDisplayName: cfg.RPName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})

	pages, err := ui.NewPages()
	if err != nil {
		slog.Error("Failed to load pages", "error", err)
		os.Exit(1)
	}

	apiServer := api.NewServer(store, sessions, ceremonies, pages, cfg.Production())

	// Apply middleware
	handler := api.Logging(api.CORS(apiServer.Routes()))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	fmt.Printf("Todo server starting on http://localhost:%s\n", cfg.Port)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
