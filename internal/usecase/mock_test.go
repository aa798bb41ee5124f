package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

// mockVideoBackend provides a configurable mock for VideoBackend.
type mockVideoBackend struct {
	searchFn    func(ctx context.Context, keywords string, maxResults int) ([]model.Video, error)
	fetchByIDFn func(ctx context.Context, id string) (*model.Video, error)

	searchCount    atomic.Int32
	fetchByIDCount atomic.Int32
}

func (m *mockVideoBackend) Search(ctx context.Context, keywords string, maxResults int) ([]model.Video, error) {
	m.searchCount.Add(1)
	if m.searchFn != nil {
		return m.searchFn(ctx, keywords, maxResults)
	}
	return []model.Video{{ID: keywords + "-v1", Title: keywords}}, nil
}

func (m *mockVideoBackend) FetchByID(ctx context.Context, id string) (*model.Video, error) {
	m.fetchByIDCount.Add(1)
	if m.fetchByIDFn != nil {
		return m.fetchByIDFn(ctx, id)
	}
	return &model.Video{ID: id}, nil
}

// mockVideoCache is a mock implementation of VideoCache for testing.
type mockVideoCache struct {
	mu       sync.RWMutex
	data     map[string]*model.Video
	getFn    func(ctx context.Context, videoID string) (*model.Video, error)
	setFn    func(ctx context.Context, video *model.Video, ttl time.Duration) error
	deleteFn func(ctx context.Context, videoID string) error
}

func newMockVideoCache() *mockVideoCache {
	return &mockVideoCache{
		data: make(map[string]*model.Video),
	}
}

func (m *mockVideoCache) Get(ctx context.Context, videoID string) (*model.Video, error) {
	if m.getFn != nil {
		return m.getFn(ctx, videoID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[videoID], nil
}

func (m *mockVideoCache) Set(ctx context.Context, video *model.Video, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, video, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[video.ID] = video
	return nil
}

func (m *mockVideoCache) Delete(ctx context.Context, videoID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, videoID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, videoID)
	return nil
}

func (m *mockVideoCache) has(videoID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[videoID]
	return ok
}

// mockEnricher returns a fixed analysis and counts calls.
type mockEnricher struct {
	analysis model.Analysis
	calls    atomic.Int32
}

func (m *mockEnricher) Enrich(videos []model.Video) model.Analysis {
	m.calls.Add(1)
	return m.analysis
}
