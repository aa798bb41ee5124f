package repository

import (
	"context"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

// VideoBackend defines the external video-search service.
// Implementations should be provided by the infrastructure layer (e.g., YouTube Data API).
type VideoBackend interface {
	// Search returns up to maxResults videos matching keywords, in backend ranking order.
	// Errors wrap ErrNetwork, ErrQuotaExceeded or ErrInvalidResponse.
	Search(ctx context.Context, keywords string, maxResults int) ([]model.Video, error)

	// FetchByID returns a single video with its full metadata.
	// Returns ErrVideoNotFound if the backend has no such video.
	FetchByID(ctx context.Context, id string) (*model.Video, error)
}
