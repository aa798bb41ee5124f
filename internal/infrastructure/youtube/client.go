package youtube

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/metrics"
)

// maxPageSize is the largest page the search endpoint accepts.
const maxPageSize = 50

var (
	searchParts = []string{"snippet"}
	videoParts  = []string{"snippet", "statistics"}
)

// quotaReasons are googleapi error reasons that mean the key ran out of budget.
var quotaReasons = map[string]struct{}{
	"quotaExceeded":         {},
	"dailyLimitExceeded":    {},
	"rateLimitExceeded":     {},
	"userRateLimitExceeded": {},
}

// ClientConfig holds configuration for the YouTube Data API client.
type ClientConfig struct {
	APIKey   string
	Endpoint string        // Optional: overrides the API base URL
	Timeout  time.Duration // Per-call timeout; zero means the caller's deadline only

	// HTTPClient replaces the default authenticated transport. APIKey is
	// ignored when it is set.
	HTTPClient *http.Client
}

// Client implements repository.VideoBackend using the YouTube Data API v3.
type Client struct {
	svc     *yt.Service
	timeout time.Duration
}

// Compile-time verification that Client implements repository.VideoBackend.
var _ repository.VideoBackend = (*Client)(nil)

// NewClient creates a new YouTube client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var opts []option.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	} else {
		if cfg.APIKey == "" {
			return nil, errors.New("youtube API key is required")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	return &Client{svc: svc, timeout: cfg.Timeout}, nil
}

// Search lists videos matching keywords and then loads their full metadata,
// since search snippets carry truncated descriptions and no statistics.
func (c *Client) Search(ctx context.Context, keywords string, maxResults int) ([]model.Video, error) {
	if keywords == "" {
		return nil, model.ErrEmptyQuery
	}
	if maxResults <= 0 || maxResults > maxPageSize {
		maxResults = maxPageSize
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.svc.Search.List(searchParts).
		Q(keywords).
		Type("video").
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(metrics.BackendOpSearch, metrics.BackendStatusError).Inc()
		return nil, classify("search", err)
	}
	metrics.BackendRequestsTotal.WithLabelValues(metrics.BackendOpSearch, metrics.BackendStatusSuccess).Inc()

	videos := make([]model.Video, 0, len(resp.Items))
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		videos = append(videos, fromSearchResult(item))
		ids = append(ids, item.Id.VideoId)
	}
	if len(ids) == 0 {
		return videos, nil
	}

	details, err := c.listVideos(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range videos {
		if d, ok := details[videos[i].ID]; ok {
			videos[i] = d
		}
	}

	return videos, nil
}

// FetchByID loads a single video with snippet and statistics.
func (c *Client) FetchByID(ctx context.Context, id string) (*model.Video, error) {
	if id == "" {
		return nil, model.ErrEmptyVideoID
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	details, err := c.listVideos(ctx, id)
	if err != nil {
		return nil, err
	}

	v, ok := details[id]
	if !ok {
		return nil, repository.ErrVideoNotFound
	}
	return &v, nil
}

func (c *Client) listVideos(ctx context.Context, ids ...string) (map[string]model.Video, error) {
	resp, err := c.svc.Videos.List(videoParts).
		Id(ids...).
		MaxResults(int64(len(ids))).
		Context(ctx).
		Do()
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(metrics.BackendOpVideos, metrics.BackendStatusError).Inc()
		return nil, classify("list videos", err)
	}
	metrics.BackendRequestsTotal.WithLabelValues(metrics.BackendOpVideos, metrics.BackendStatusSuccess).Inc()

	out := make(map[string]model.Video, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == "" || item.Snippet == nil {
			continue
		}
		out[item.Id] = fromVideo(item)
	}
	return out, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// classify maps transport and API errors onto the backend failure taxonomy.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%s: %w: %w", op, repository.ErrQuotaExceeded, err)
		}
		for _, item := range apiErr.Errors {
			if _, ok := quotaReasons[item.Reason]; ok {
				return fmt.Errorf("%s: %w: %w", op, repository.ErrQuotaExceeded, err)
			}
		}
		if apiErr.Code >= http.StatusInternalServerError {
			return fmt.Errorf("%s: %w: %w", op, repository.ErrNetwork, err)
		}
		return fmt.Errorf("%s: %w: %w", op, repository.ErrInvalidResponse, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, repository.ErrNetwork, err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, repository.ErrNetwork, err)
	}

	return fmt.Errorf("%s: %w: %w", op, repository.ErrInvalidResponse, err)
}

func fromSearchResult(item *yt.SearchResult) model.Video {
	s := item.Snippet
	return model.Video{
		ID:           item.Id.VideoId,
		Title:        s.Title,
		Description:  s.Description,
		ChannelID:    s.ChannelId,
		ChannelTitle: s.ChannelTitle,
		ThumbnailURL: thumbnailURL(s.Thumbnails),
		PublishedAt:  parseTime(s.PublishedAt),
	}
}

func fromVideo(item *yt.Video) model.Video {
	s := item.Snippet
	v := model.Video{
		ID:           item.Id,
		Title:        s.Title,
		Description:  s.Description,
		ChannelID:    s.ChannelId,
		ChannelTitle: s.ChannelTitle,
		ThumbnailURL: thumbnailURL(s.Thumbnails),
		PublishedAt:  parseTime(s.PublishedAt),
		Tags:         s.Tags,
	}
	if item.Statistics != nil {
		v.ViewCount = item.Statistics.ViewCount
	}
	return v
}

func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Medium, t.Default, t.High} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
