package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/metrics"
)

const (
	// videoCacheKeyPrefix is the prefix for video cache keys in Redis.
	videoCacheKeyPrefix = "tubelytics:video:"
)

// videoJSON is the JSON representation of a Video for caching.
// Using explicit struct avoids coupling to the domain model's API JSON tags.
type videoJSON struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ChannelID    string   `json:"channel_id"`
	ChannelTitle string   `json:"channel_title"`
	ThumbnailURL string   `json:"thumbnail_url"`
	PublishedAt  string   `json:"published_at"`
	Tags         []string `json:"tags"`
	ViewCount    uint64   `json:"view_count"`
}

// RedisVideoCache implements VideoCache using Redis as the backing store.
type RedisVideoCache struct {
	client *redis.Client
}

// Compile-time verification that RedisVideoCache implements VideoCache.
var _ VideoCache = (*RedisVideoCache)(nil)

// NewRedisVideoCache creates a new Redis-backed video cache.
func NewRedisVideoCache(client *redis.Client) *RedisVideoCache {
	return &RedisVideoCache{
		client: client,
	}
}

// Get retrieves a video from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisVideoCache) Get(ctx context.Context, videoID string) (*model.Video, error) {
	key := c.buildKey(videoID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeRedis).Inc()
			return nil, nil // Cache miss
		}
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	video, err := c.deserialize(data)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return nil, fmt.Errorf("deserialize video: %w", err)
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeRedis).Inc()
	return video, nil
}

// Set stores a video in Redis cache with the specified TTL.
func (c *RedisVideoCache) Set(ctx context.Context, video *model.Video, ttl time.Duration) error {
	key := c.buildKey(video.ID)

	data, err := c.serialize(video)
	if err != nil {
		return fmt.Errorf("serialize video: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
	return nil
}

// Delete removes a video from Redis cache.
func (c *RedisVideoCache) Delete(ctx context.Context, videoID string) error {
	key := c.buildKey(videoID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
	return nil
}

// buildKey constructs the Redis key for a video.
func (c *RedisVideoCache) buildKey(videoID string) string {
	return videoCacheKeyPrefix + videoID
}

// serialize converts a Video to JSON bytes.
func (c *RedisVideoCache) serialize(video *model.Video) ([]byte, error) {
	v := videoJSON{
		ID:           video.ID,
		Title:        video.Title,
		Description:  video.Description,
		ChannelID:    video.ChannelID,
		ChannelTitle: video.ChannelTitle,
		ThumbnailURL: video.ThumbnailURL,
		PublishedAt:  video.PublishedAt.Format(time.RFC3339Nano),
		Tags:         video.Tags,
		ViewCount:    video.ViewCount,
	}
	return json.Marshal(v)
}

// deserialize converts JSON bytes to a Video.
func (c *RedisVideoCache) deserialize(data []byte) (*model.Video, error) {
	var v videoJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	if v.ID == "" {
		return nil, model.ErrEmptyVideoID
	}

	publishedAt, err := time.Parse(time.RFC3339Nano, v.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse published_at: %w", err)
	}

	return &model.Video{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		ChannelID:    v.ChannelID,
		ChannelTitle: v.ChannelTitle,
		ThumbnailURL: v.ThumbnailURL,
		PublishedAt:  publishedAt,
		Tags:         v.Tags,
		ViewCount:    v.ViewCount,
	}, nil
}
