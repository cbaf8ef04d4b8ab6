package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/KudosClassroom/internal/api"
	"github.com/honeynil/KudosClassroom/internal/config"
	"github.com/honeynil/KudosClassroom/internal/handler"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/kafka"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/observability"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/redis"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/storage"
	"github.com/honeynil/KudosClassroom/internal/repository"
	inmemdb "github.com/honeynil/KudosClassroom/internal/repository/inmem"
	core "github.com/honeynil/KudosClassroom/internal/repository/postgres"
	service "github.com/honeynil/KudosClassroom/internal/services"
	"github.com/honeynil/KudosClassroom/migrations"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdownTracing, err := observability.Setup(ctx, "kudos-classroom", cfg.LogLevel, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("failed to shut down tracing", "error", err)
		}
	}()

	store, redisClient, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	defer redisClient.Close()

	var events kafka.EventPublisher = kafka.NoopPublisher{}
	if cfg.EventsEnabled() {
		events = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer events.Close()

	var uploads storage.UploadSigner = storage.DisabledSigner{}
	if cfg.S3.Bucket != "" {
		signer, err := storage.NewS3Signer(ctx, cfg.S3)
		if err != nil {
			return err
		}
		uploads = signer
	}

	issuer := auth.NewTokenIssuer(cfg.Auth)
	cache := redis.NewPrizeCache(redisClient, cfg.PrizeCacheTTL)

	h := handler.NewHandler(handler.Services{
		Auth:      service.NewAuthService(store, issuer, redis.NewSessionStore(redisClient)),
		Purchase:  service.NewPurchaseService(store, cache, events, time.Now),
		Classroom: service.NewClassroomService(store, cache),
		Query:     service.NewQueryService(store, cache),
		Uploads:   uploads,
	}, cfg.Auth.CookieSecure, cfg.Auth.RefreshTTL)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(h, issuer, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case s := <-sig:
		slog.Info("shutting down", "signal", s.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openStorage selects the backend. Memory mode also replaces redis so the
// service runs without any external dependency.
func openStorage(ctx context.Context, cfg *config.Config) (*repository.Store, redis.RedisClient, func(), error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		return inmemdb.NewStore(), redis.NewMemoryClient(), func() {}, nil
	}

	if cfg.RunMigrations {
		if err := migrations.Up(cfg.PostgresDSN); err != nil {
			return nil, nil, nil, err
		}
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return core.NewStore(db), redisClient, func() { _ = db.Close() }, nil
}
