package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"catalog-core/internal/config"
	"catalog-core/internal/database"
	"catalog-core/internal/events"
	"catalog-core/internal/logger"
	"catalog-core/internal/persistence"
	"catalog-core/internal/resilience"
	"catalog-core/internal/server"
	"catalog-core/internal/storage"
	"catalog-core/internal/storage/memory"
	"catalog-core/internal/storage/mongo"
	"catalog-core/internal/storage/postgres"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, timeout time.Duration, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Closing after Shutdown flushes pending change events before the store goes away.
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

// openStore connects the configured storage driver and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Driver, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info("Database health check", zap.Any("health", database.Health(ctx, pool)))
		if err := database.MigratePool(pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if version, err := database.SchemaVersion(pool); err != nil {
			log.Warn("Could not read schema version", zap.Error(err))
		} else {
			log.Info("Database schema ready", zap.Int64("version", version))
		}
		return postgres.New(pool, log), nil
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, err
		}
		store := mongo.New(client, cfg.Mongo.Database, log)
		if err := store.EnsureIndexes(ctx, persistence.Schemas()...); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		return store, nil
	case "memory":
		log.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(log), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	log.Info("Starting catalog API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(startCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}

	opts := []persistence.Option{persistence.WithLogger(log)}
	var closers []io.Closer
	if cfg.Kafka.Enabled {
		publisher := events.NewPublisher(events.Config{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			NetworkMode:       cfg.Kafka.NetworkMode,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
			WriteTimeout:      cfg.Kafka.WriteTimeout,
		}, log)
		if err := publisher.EnsureTopic(10 * time.Second); err != nil {
			log.Warn("Could not ensure change topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
		}
		opts = append(opts, persistence.WithCommitHook(publisher.Hook()))
		closers = append(closers, publisher)
	}
	closers = append(closers, store)

	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(startCtx).Err(); err != nil {
			log.Warn("Redis unavailable, admin rate limiting will let requests through", zap.Error(err))
		}
	}

	policy := resilience.NewPolicy(
		resilience.NewRetrier(resilience.RetryConfig{
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
			MaxRetries:      cfg.Retry.MaxRetries,
		}, log),
		resilience.NewBreaker(cfg.Retry.BreakerThreshold, cfg.Retry.BreakerCooldown, log),
	)

	srv := server.NewServer(cfg, log, server.Deps{
		Factory: persistence.NewFactory(store, opts...),
		Runner:  policy,
		Redis:   rdb,
		Closers: closers,
	})

	done := make(chan bool, 1)
	go gracefulShutdown(srv, cfg.Server.ShutdownTimeout, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
