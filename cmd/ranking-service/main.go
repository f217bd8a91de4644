// cmd/ranking-service/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"recruiter-backend/internal/aggregation"
	"recruiter-backend/internal/common/config"
	"recruiter-backend/internal/common/database"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/common/observability"
	"recruiter-backend/internal/common/storage"
	"recruiter-backend/internal/ranking"
	"recruiter-backend/internal/ranking/cache"
	"recruiter-backend/internal/ranking/executor"
	"recruiter-backend/internal/ranking/notify"
	"recruiter-backend/internal/ranking/orchestrator"
	"recruiter-backend/internal/scoring"
	"recruiter-backend/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting ranking service...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init external service clients ---
	resolver, err := storage.NewS3Resolver(ctx, cfg.Storage.Region, cfg.Storage.Bucket,
		time.Duration(cfg.Storage.PresignExpiry)*time.Second)
	if err != nil {
		zapLog.Fatal("storage resolver init failed", zap.Error(err))
	}

	scorer, err := scoring.NewClient(cfg.Scoring.BaseURL,
		time.Duration(cfg.Scoring.Timeout)*time.Millisecond)
	if err != nil {
		zapLog.Fatal("scoring client init failed", zap.Error(err))
	}

	store := aggregation.NewPostgresStore(pg, log)
	resultCache := cache.New(rdb)

	var notifier orchestrator.Notifier
	if cfg.Notifications.Email.Enabled {
		emailNotifier, err := notify.NewEmailNotifier(ctx, cfg.Notifications.AWS.Region,
			cfg.Notifications.Email.FromEmail, store, log)
		if err != nil {
			zapLog.Fatal("email notifier init failed", zap.Error(err))
		}
		notifier = emailNotifier
	}

	orch := orchestrator.New(store, scorer, resultCache, resolver, notifier, obs,
		time.Duration(cfg.Ranking.StageTimeout)*time.Millisecond, log)

	exec := executor.New(cfg.Ranking.Workers, cfg.Ranking.QueueSize, log)
	exec.Start()

	service := ranking.NewService(store, orch, resultCache, resolver, exec,
		time.Duration(cfg.Ranking.PreviewTimeout)*time.Millisecond, log)

	srv := server.New(cfg.Server.Address, service, pg, rdb, log)
	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	zapLog.Info("Ranking service is running. Press Ctrl+C to exit.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down ranking service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	// Stop accepting requests first, then drain queued ranking runs so every
	// accepted run still reaches a terminal status.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http shutdown error", zap.Error(err))
	}
	exec.Stop()

	zapLog.Info("Ranking service shut down cleanly")
}
