// Package app wires the backend, caches and worker supervisor shared by the
// API server and the queue worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/tubelytics/internal/analytics"
	"github.com/hszk-dev/tubelytics/internal/config"
	"github.com/hszk-dev/tubelytics/internal/dispatch"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/cache"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/youtube"
	"github.com/hszk-dev/tubelytics/internal/usecase"
)

// App holds the long-lived components of a process.
type App struct {
	Sessions   *usecase.SessionCache
	Supervisor *dispatch.Supervisor

	redis *redis.Client
}

// New connects to the external services and starts the worker supervisor.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	backend, err := youtube.NewClient(ctx, youtube.ClientConfig{
		APIKey:   cfg.YouTube.APIKey,
		Endpoint: cfg.YouTube.Endpoint,
		Timeout:  cfg.YouTube.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr()))

	sessions := usecase.NewSessionCache(backend, analytics.NewAnalyzer(), usecase.SessionCacheConfig{
		Capacity:     cfg.SessionCache.Capacity,
		PageSize:     cfg.SessionCache.PageSize,
		FetchTimeout: cfg.Dispatch.Timeout,
	})

	videos := usecase.NewCachedVideoLookup(
		backend,
		cache.NewRedisVideoCache(redisClient),
		usecase.CachedVideoLookupConfig{CacheTTL: cfg.Redis.VideoTTL, FetchTimeout: cfg.Dispatch.Timeout},
		logger,
	)

	supervisor := dispatch.NewSupervisor(dispatch.SupervisorConfig{
		Concurrency:   cfg.Dispatch.Concurrency,
		QueueSize:     cfg.Dispatch.QueueSize,
		MaxRestarts:   cfg.Dispatch.MaxRestarts,
		RestartWindow: cfg.Dispatch.RestartWindow,
	}, Workers(sessions, backend, videos), logger)
	supervisor.Start()

	return &App{
		Sessions:   sessions,
		Supervisor: supervisor,
		redis:      redisClient,
	}, nil
}

// Workers returns one factory per request category.
func Workers(sessions dispatch.SearchCache, backend repository.VideoBackend, videos dispatch.VideoGetter) map[dispatch.Category]dispatch.WorkerFactory {
	return map[dispatch.Category]dispatch.WorkerFactory{
		dispatch.CategorySearch: func() dispatch.Worker {
			return dispatch.NewSearchWorker(sessions)
		},
		dispatch.CategoryStatistics: func() dispatch.Worker {
			return dispatch.NewStatisticsWorker(backend)
		},
		dispatch.CategoryMetadata: func() dispatch.Worker {
			return dispatch.NewMetadataWorker(videos)
		},
	}
}

// Close stops the workers and releases connections.
func (a *App) Close() error {
	a.Supervisor.Stop()

	var errs []error
	if err := a.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
	}
	return errors.Join(errs...)
}
