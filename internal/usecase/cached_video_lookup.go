package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/cache"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/metrics"
)

// VideoLookup resolves a single video by its id.
type VideoLookup interface {
	GetVideo(ctx context.Context, videoID string) (*model.Video, error)
	InvalidateCache(ctx context.Context, videoID string) error
}

// CachedVideoLookupConfig holds configuration for the cached video lookup.
type CachedVideoLookupConfig struct {
	// CacheTTL is the TTL for cached video metadata.
	CacheTTL time.Duration
	// FetchTimeout bounds a lookup shared by concurrent callers.
	FetchTimeout time.Duration
}

// DefaultCachedVideoLookupConfig returns the default configuration.
func DefaultCachedVideoLookupConfig() CachedVideoLookupConfig {
	return CachedVideoLookupConfig{
		CacheTTL:     10 * time.Minute,
		FetchTimeout: DefaultFetchTimeout,
	}
}

// cachedVideoLookup fronts the video backend with a metadata cache.
type cachedVideoLookup struct {
	backend repository.VideoBackend
	cache   cache.VideoCache
	sfGroup singleflight.Group
	logger  *slog.Logger

	cacheTTL     time.Duration
	fetchTimeout time.Duration
}

// NewCachedVideoLookup creates a VideoLookup that reads through videoCache.
func NewCachedVideoLookup(
	backend repository.VideoBackend,
	videoCache cache.VideoCache,
	cfg CachedVideoLookupConfig,
	logger *slog.Logger,
) VideoLookup {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &cachedVideoLookup{
		backend:      backend,
		cache:        videoCache,
		logger:       logger,
		cacheTTL:     cfg.CacheTTL,
		fetchTimeout: cfg.FetchTimeout,
	}
}

// GetVideo retrieves video metadata with caching.
// Concurrent requests for the same video share one lookup.
func (s *cachedVideoLookup) GetVideo(ctx context.Context, videoID string) (*model.Video, error) {
	if videoID == "" {
		return nil, model.ErrEmptyVideoID
	}

	result, err := doShared(ctx, &s.sfGroup, metrics.GroupVideoLookup, videoID, s.fetchTimeout, func(ctx context.Context) (any, error) {
		return s.getVideoWithCache(ctx, videoID)
	})
	if err != nil {
		return nil, err
	}

	// Callers get their own copy so the shared result is never mutated.
	video := *result.(*model.Video)
	return &video, nil
}

// getVideoWithCache implements the cache-aside pattern.
func (s *cachedVideoLookup) getVideoWithCache(ctx context.Context, videoID string) (*model.Video, error) {
	video, err := s.cache.Get(ctx, videoID)
	if err != nil {
		// Log cache error but continue to the backend
		s.logger.Warn("cache get failed, falling back to backend",
			"video_id", videoID,
			"error", err,
		)
	}

	if video != nil {
		return video, nil
	}

	video, err = s.backend.FetchByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, video, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache video",
			"video_id", videoID,
			"error", err,
		)
	}

	return video, nil
}

// InvalidateCache removes a video from the cache.
func (s *cachedVideoLookup) InvalidateCache(ctx context.Context, videoID string) error {
	return s.cache.Delete(ctx, videoID)
}
