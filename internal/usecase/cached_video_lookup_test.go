package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
)

func TestCachedVideoLookup_GetVideo_CacheHit(t *testing.T) {
	cachedVideo := &model.Video{
		ID:    "dQw4w9WgXcQ",
		Title: "Cached Video",
	}

	backend := &mockVideoBackend{}
	mockCache := newMockVideoCache()
	mockCache.data[cachedVideo.ID] = cachedVideo

	lookup := NewCachedVideoLookup(backend, mockCache, DefaultCachedVideoLookupConfig(), nil)

	got, err := lookup.GetVideo(context.Background(), cachedVideo.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}

	if got.Title != cachedVideo.Title {
		t.Errorf("Title = %v, want %v", got.Title, cachedVideo.Title)
	}

	// Verify backend was NOT called (cache hit)
	if backend.fetchByIDCount.Load() != 0 {
		t.Errorf("backend FetchByID called %d times, want 0", backend.fetchByIDCount.Load())
	}
}

func TestCachedVideoLookup_GetVideo_CacheMiss(t *testing.T) {
	backend := &mockVideoBackend{
		fetchByIDFn: func(ctx context.Context, id string) (*model.Video, error) {
			return &model.Video{ID: id, Title: "Backend Video"}, nil
		},
	}
	mockCache := newMockVideoCache()

	lookup := NewCachedVideoLookup(backend, mockCache, DefaultCachedVideoLookupConfig(), nil)

	got, err := lookup.GetVideo(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}

	if got.ID != "abc" {
		t.Errorf("ID = %v, want abc", got.ID)
	}
	if backend.fetchByIDCount.Load() != 1 {
		t.Errorf("backend FetchByID called %d times, want 1", backend.fetchByIDCount.Load())
	}
	if !mockCache.has("abc") {
		t.Error("video was not cached after cache miss")
	}
}

func TestCachedVideoLookup_GetVideo_ReturnsCopy(t *testing.T) {
	mockCache := newMockVideoCache()
	mockCache.data["abc"] = &model.Video{ID: "abc", Title: "Original"}

	lookup := NewCachedVideoLookup(&mockVideoBackend{}, mockCache, DefaultCachedVideoLookupConfig(), nil)

	got, err := lookup.GetVideo(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	got.Title = "Changed"

	if mockCache.data["abc"].Title != "Original" {
		t.Error("caller mutation leaked into cached video")
	}
}

func TestCachedVideoLookup_GetVideo_Errors(t *testing.T) {
	tests := []struct {
		name    string
		videoID string
		fetchFn func(ctx context.Context, id string) (*model.Video, error)
		wantErr error
	}{
		{
			name:    "empty id",
			videoID: "",
			wantErr: model.ErrEmptyVideoID,
		},
		{
			name:    "not found",
			videoID: "missing",
			fetchFn: func(ctx context.Context, id string) (*model.Video, error) {
				return nil, repository.ErrVideoNotFound
			},
			wantErr: repository.ErrVideoNotFound,
		},
		{
			name:    "quota exceeded",
			videoID: "abc",
			fetchFn: func(ctx context.Context, id string) (*model.Video, error) {
				return nil, repository.ErrQuotaExceeded
			},
			wantErr: repository.ErrQuotaExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockVideoBackend{fetchByIDFn: tt.fetchFn}
			mockCache := newMockVideoCache()
			lookup := NewCachedVideoLookup(backend, mockCache, DefaultCachedVideoLookupConfig(), nil)

			_, err := lookup.GetVideo(context.Background(), tt.videoID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if mockCache.has(tt.videoID) {
				t.Error("failed lookup must not populate the cache")
			}
		})
	}
}

func TestCachedVideoLookup_InvalidateCache(t *testing.T) {
	mockCache := newMockVideoCache()
	mockCache.data["abc"] = &model.Video{ID: "abc"}

	lookup := NewCachedVideoLookup(&mockVideoBackend{}, mockCache, DefaultCachedVideoLookupConfig(), nil)

	if err := lookup.InvalidateCache(context.Background(), "abc"); err != nil {
		t.Fatalf("InvalidateCache failed: %v", err)
	}

	if mockCache.has("abc") {
		t.Error("cache was not invalidated")
	}
}

func TestCachedVideoLookup_GetVideo_Singleflight(t *testing.T) {
	// Add delay to simulate a slow backend call
	backend := &mockVideoBackend{
		fetchByIDFn: func(ctx context.Context, id string) (*model.Video, error) {
			time.Sleep(50 * time.Millisecond)
			return &model.Video{ID: id}, nil
		},
	}
	mockCache := newMockVideoCache()

	lookup := NewCachedVideoLookup(backend, mockCache, DefaultCachedVideoLookupConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lookup.GetVideo(context.Background(), "abc"); err != nil {
				t.Errorf("GetVideo failed: %v", err)
			}
		}()
	}

	wg.Wait()

	// Singleflight should coalesce requests - backend should be called only once
	callCount := backend.fetchByIDCount.Load()
	if callCount != 1 {
		t.Errorf("backend FetchByID called %d times, want 1 (singleflight should coalesce)", callCount)
	}
}

func TestCachedVideoLookup_GetVideo_CacheErrorFallsBackToBackend(t *testing.T) {
	backend := &mockVideoBackend{}
	mockCache := &mockVideoCache{
		getFn: func(ctx context.Context, videoID string) (*model.Video, error) {
			return nil, errors.New("redis connection error")
		},
		setFn: func(ctx context.Context, video *model.Video, ttl time.Duration) error {
			return errors.New("redis connection error")
		},
	}

	lookup := NewCachedVideoLookup(backend, mockCache, DefaultCachedVideoLookupConfig(), nil)

	got, err := lookup.GetVideo(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetVideo should not fail on cache error: %v", err)
	}

	if got.ID != "abc" {
		t.Errorf("ID = %v, want abc", got.ID)
	}
}

func TestCachedVideoLookup_GetVideo_CancelledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	backend := &mockVideoBackend{
		fetchByIDFn: func(ctx context.Context, id string) (*model.Video, error) {
			close(started)
			select {
			case <-release:
				return &model.Video{ID: id}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	lookup := NewCachedVideoLookup(backend, newMockVideoCache(), DefaultCachedVideoLookupConfig(), nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := lookup.GetVideo(ctxA, "abc")
		errA <- err
	}()
	<-started

	errB := make(chan error, 1)
	go func() {
		_, err := lookup.GetVideo(context.Background(), "abc")
		errB <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("caller A error = %v, want %v", err, context.Canceled)
	}

	close(release)
	if err := <-errB; err != nil {
		t.Errorf("caller B failed: %v", err)
	}
}
