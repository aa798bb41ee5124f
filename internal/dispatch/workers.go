package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/hszk-dev/tubelytics/internal/analytics"
	"github.com/hszk-dev/tubelytics/internal/domain/model"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
)

// StatisticsPageSize is the number of videos a statistics request analyzes.
const StatisticsPageSize = 50

// Worker serves one decoded request. Workers hold no mutable state, so a
// crashed worker can be replaced by a fresh one from its factory.
type Worker interface {
	Handle(ctx context.Context, req Request) (any, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, req Request) (any, error)

func (f WorkerFunc) Handle(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// WorkerFactory creates a Worker for a supervisor pool.
type WorkerFactory func() Worker

// SearchCache is the session cache as seen by the search worker.
type SearchCache interface {
	Resolve(ctx context.Context, sessionID, query string) ([]model.SearchRecord, error)
	Refresh(ctx context.Context, sessionID string) ([]model.SearchRecord, error)
	SessionList(sessionID string) []model.SearchRecord
}

// VideoGetter resolves a single video by id through a metadata cache.
type VideoGetter interface {
	GetVideo(ctx context.Context, videoID string) (*model.Video, error)
	InvalidateCache(ctx context.Context, videoID string) error
}

// SearchWorker serves search, refresh and history requests.
type SearchWorker struct {
	cache SearchCache
}

func NewSearchWorker(cache SearchCache) *SearchWorker {
	return &SearchWorker{cache: cache}
}

func (w *SearchWorker) Handle(ctx context.Context, req Request) (any, error) {
	var (
		records []model.SearchRecord
		err     error
	)

	switch req.Type {
	case TypeSearch:
		records, err = w.cache.Resolve(ctx, req.SessionID, req.Query)
	case TypeRefresh:
		records, err = w.cache.Refresh(ctx, req.SessionID)
	case TypeHistory:
		records = w.cache.SessionList(req.SessionID)
	default:
		return nil, fmt.Errorf("%w: search worker cannot serve %q", ErrMalformedRequest, req.Type)
	}
	if err != nil {
		return nil, backendError(err)
	}

	return SearchPayload{SessionID: req.SessionID, Records: records}, nil
}

// StatisticsWorker computes word frequencies over a fresh search's descriptions.
type StatisticsWorker struct {
	backend repository.VideoBackend
}

func NewStatisticsWorker(backend repository.VideoBackend) *StatisticsWorker {
	return &StatisticsWorker{backend: backend}
}

func (w *StatisticsWorker) Handle(ctx context.Context, req Request) (any, error) {
	if req.Type != TypeStatistics {
		return nil, fmt.Errorf("%w: statistics worker cannot serve %q", ErrMalformedRequest, req.Type)
	}

	videos, err := w.backend.Search(ctx, req.SearchTerm, StatisticsPageSize)
	if err != nil {
		return nil, backendError(err)
	}

	descriptions := make([]string, len(videos))
	for i, v := range videos {
		descriptions[i] = v.Description
	}

	return StatisticsPayload{
		SearchTerm: req.SearchTerm,
		Words:      analytics.WordStats(descriptions),
	}, nil
}

// MetadataWorker serves single video lookups.
type MetadataWorker struct {
	videos VideoGetter
}

func NewMetadataWorker(videos VideoGetter) *MetadataWorker {
	return &MetadataWorker{videos: videos}
}

func (w *MetadataWorker) Handle(ctx context.Context, req Request) (any, error) {
	if req.Type != TypeMetadata {
		return nil, fmt.Errorf("%w: metadata worker cannot serve %q", ErrMalformedRequest, req.Type)
	}

	if req.Fresh && req.VideoID != "" {
		if err := w.videos.InvalidateCache(ctx, req.VideoID); err != nil {
			return nil, backendError(fmt.Errorf("invalidate %s: %w", req.VideoID, err))
		}
	}

	video, err := w.videos.GetVideo(ctx, req.VideoID)
	if err != nil {
		return nil, backendError(err)
	}
	return video, nil
}

// backendError tags err with its place in the failure taxonomy.
func backendError(err error) error {
	switch {
	case errors.Is(err, model.ErrEmptyQuery), errors.Is(err, model.ErrEmptyVideoID):
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
}
