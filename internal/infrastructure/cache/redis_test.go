package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func testVideo(id string) *model.Video {
	return &model.Video{
		ID:           id,
		Title:        "Learn Go in 10 minutes",
		Description:  "A quick tour of the language.",
		ChannelID:    "UC123",
		ChannelTitle: "Gopher Academy",
		ThumbnailURL: "https://i.ytimg.com/vi/" + id + "/default.jpg",
		PublishedAt:  time.Now().UTC().Truncate(time.Microsecond),
		Tags:         []string{"go", "tutorial"},
		ViewCount:    1234,
	}
}

func TestRedisVideoCache_Get_CacheHit(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()

	video := testVideo("dQw4w9WgXcQ")

	// Set the video in cache
	err := cache.Set(ctx, video, 5*time.Minute)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Get the video from cache
	got, err := cache.Get(ctx, video.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got == nil {
		t.Fatal("expected video, got nil")
	}

	// Verify fields
	if got.ID != video.ID {
		t.Errorf("ID = %v, want %v", got.ID, video.ID)
	}
	if got.Title != video.Title {
		t.Errorf("Title = %v, want %v", got.Title, video.Title)
	}
	if got.ChannelTitle != video.ChannelTitle {
		t.Errorf("ChannelTitle = %v, want %v", got.ChannelTitle, video.ChannelTitle)
	}
	if !got.PublishedAt.Equal(video.PublishedAt) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, video.PublishedAt)
	}
	if got.ViewCount != video.ViewCount {
		t.Errorf("ViewCount = %v, want %v", got.ViewCount, video.ViewCount)
	}
	if len(got.Tags) != len(video.Tags) {
		t.Errorf("Tags = %v, want %v", got.Tags, video.Tags)
	}
}

func TestRedisVideoCache_Get_CacheMiss(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)

	got, err := cache.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("expected nil for cache miss, got %v", got)
	}
}

func TestRedisVideoCache_Get_CorruptEntry(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	if err := mr.Set(cache.buildKey("broken"), "{not json"); err != nil {
		t.Fatalf("failed to seed miniredis: %v", err)
	}

	got, err := cache.Get(context.Background(), "broken")
	if err == nil {
		t.Fatal("expected deserialize error, got nil")
	}
	if got != nil {
		t.Errorf("expected nil video on error, got %v", got)
	}
}

func TestRedisVideoCache_Set_TTL(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()
	video := testVideo("ttl-video")

	if err := cache.Set(ctx, video, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, video.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected entry to expire, got %v", got)
	}
}

func TestRedisVideoCache_Delete(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()
	video := testVideo("to-delete")

	if err := cache.Set(ctx, video, 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := cache.Delete(ctx, video.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := cache.Get(ctx, video.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}
}

func TestRedisVideoCache_Delete_NonExistent(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)

	// Delete non-existent video should not error
	if err := cache.Delete(context.Background(), "nope"); err != nil {
		t.Fatalf("Delete failed for non-existent key: %v", err)
	}
}

func TestRedisVideoCache_Unavailable(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	mr.Close()

	if _, err := cache.Get(context.Background(), "any"); err == nil {
		t.Error("expected Get error when redis is down")
	}
	if err := cache.Set(context.Background(), testVideo("any"), time.Minute); err == nil {
		t.Error("expected Set error when redis is down")
	}
}

func TestRedisVideoCache_buildKey(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)

	key := cache.buildKey("dQw4w9WgXcQ")
	expected := "tubelytics:video:dQw4w9WgXcQ"

	if key != expected {
		t.Errorf("buildKey() = %v, want %v", key, expected)
	}
}
