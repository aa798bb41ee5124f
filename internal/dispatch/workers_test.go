package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
)

type mockSearchCache struct {
	resolveFn func(ctx context.Context, sessionID, query string) ([]model.SearchRecord, error)
	refreshFn func(ctx context.Context, sessionID string) ([]model.SearchRecord, error)
	listFn    func(sessionID string) []model.SearchRecord
}

func (m *mockSearchCache) Resolve(ctx context.Context, sessionID, query string) ([]model.SearchRecord, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sessionID, query)
	}
	return []model.SearchRecord{{Query: query}}, nil
}

func (m *mockSearchCache) Refresh(ctx context.Context, sessionID string) ([]model.SearchRecord, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, sessionID)
	}
	return []model.SearchRecord{}, nil
}

func (m *mockSearchCache) SessionList(sessionID string) []model.SearchRecord {
	if m.listFn != nil {
		return m.listFn(sessionID)
	}
	return []model.SearchRecord{}
}

type mockBackend struct {
	searchFn     func(ctx context.Context, keywords string, maxResults int) ([]model.Video, error)
	fetchByIDFn  func(ctx context.Context, id string) (*model.Video, error)
	invalidateFn func(ctx context.Context, id string) error

	calls []string
}

func (m *mockBackend) Search(ctx context.Context, keywords string, maxResults int) ([]model.Video, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, keywords, maxResults)
	}
	return nil, nil
}

func (m *mockBackend) FetchByID(ctx context.Context, id string) (*model.Video, error) {
	if m.fetchByIDFn != nil {
		return m.fetchByIDFn(ctx, id)
	}
	return &model.Video{ID: id}, nil
}

func (m *mockBackend) GetVideo(ctx context.Context, videoID string) (*model.Video, error) {
	m.calls = append(m.calls, "get:"+videoID)
	return m.FetchByID(ctx, videoID)
}

func (m *mockBackend) InvalidateCache(ctx context.Context, videoID string) error {
	m.calls = append(m.calls, "invalidate:"+videoID)
	if m.invalidateFn != nil {
		return m.invalidateFn(ctx, videoID)
	}
	return nil
}

func TestSearchWorker_Handle(t *testing.T) {
	history := []model.SearchRecord{{Query: "b"}, {Query: "a"}}
	cache := &mockSearchCache{
		refreshFn: func(ctx context.Context, sessionID string) ([]model.SearchRecord, error) {
			return history, nil
		},
		listFn: func(sessionID string) []model.SearchRecord {
			return history
		},
	}
	w := NewSearchWorker(cache)

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"search", Request{Type: TypeSearch, SessionID: "0", Query: "golang"}, []string{"golang"}},
		{"refresh", Request{Type: TypeRefresh, SessionID: "0"}, []string{"b", "a"}},
		{"history", Request{Type: TypeHistory, SessionID: "0"}, []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Handle(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}

			payload, ok := got.(SearchPayload)
			if !ok {
				t.Fatalf("payload type = %T, want SearchPayload", got)
			}
			if payload.SessionID != "0" {
				t.Errorf("SessionID = %q, want 0", payload.SessionID)
			}

			queries := make([]string, len(payload.Records))
			for i, r := range payload.Records {
				queries[i] = r.Query
			}
			if diff := cmp.Diff(tt.want, queries); diff != "" {
				t.Errorf("queries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchWorker_Handle_Errors(t *testing.T) {
	cache := &mockSearchCache{
		resolveFn: func(ctx context.Context, sessionID, query string) ([]model.SearchRecord, error) {
			return nil, repository.ErrQuotaExceeded
		},
	}
	w := NewSearchWorker(cache)

	_, err := w.Handle(context.Background(), Request{Type: TypeSearch, SessionID: "0", Query: "golang"})
	if !errors.Is(err, ErrBackendUnavailable) || !errors.Is(err, repository.ErrQuotaExceeded) {
		t.Errorf("error = %v, want backend unavailable wrapping quota exceeded", err)
	}

	_, err = w.Handle(context.Background(), Request{Type: TypeMetadata, VideoID: "x"})
	if !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("error = %v, want %v", err, ErrMalformedRequest)
	}
}

func TestStatisticsWorker_Handle(t *testing.T) {
	var gotMax int
	backend := &mockBackend{
		searchFn: func(ctx context.Context, keywords string, maxResults int) ([]model.Video, error) {
			gotMax = maxResults
			return []model.Video{
				{Description: "go go gopher"},
				{Description: "Go fast"},
			}, nil
		},
	}
	w := NewStatisticsWorker(backend)

	got, err := w.Handle(context.Background(), Request{Type: TypeStatistics, SearchTerm: "golang"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	payload := got.(StatisticsPayload)
	want := []model.WordCount{
		{Word: "go", Count: 3},
		{Word: "fast", Count: 1},
		{Word: "gopher", Count: 1},
	}
	if diff := cmp.Diff(want, payload.Words); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
	if gotMax != StatisticsPageSize {
		t.Errorf("maxResults = %d, want %d", gotMax, StatisticsPageSize)
	}
}

func TestStatisticsWorker_Handle_BackendError(t *testing.T) {
	backend := &mockBackend{
		searchFn: func(ctx context.Context, keywords string, maxResults int) ([]model.Video, error) {
			return nil, repository.ErrNetwork
		},
	}
	w := NewStatisticsWorker(backend)

	_, err := w.Handle(context.Background(), Request{Type: TypeStatistics, SearchTerm: "golang"})
	if Kind(err) != KindBackendUnavailable {
		t.Errorf("Kind = %q, want %q", Kind(err), KindBackendUnavailable)
	}
}

func TestMetadataWorker_Handle(t *testing.T) {
	tests := []struct {
		name     string
		fetchFn  func(ctx context.Context, id string) (*model.Video, error)
		wantKind ErrorKind
	}{
		{
			name: "found",
		},
		{
			name: "not found",
			fetchFn: func(ctx context.Context, id string) (*model.Video, error) {
				return nil, repository.ErrVideoNotFound
			},
			wantKind: KindBackendUnavailable,
		},
		{
			name: "deadline",
			fetchFn: func(ctx context.Context, id string) (*model.Video, error) {
				return nil, context.DeadlineExceeded
			},
			wantKind: KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewMetadataWorker(&mockBackend{fetchByIDFn: tt.fetchFn})

			got, err := w.Handle(context.Background(), Request{Type: TypeMetadata, VideoID: "abc"})
			if tt.wantKind != "" {
				if Kind(err) != tt.wantKind {
					t.Errorf("Kind = %q, want %q (error %v)", Kind(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if v := got.(*model.Video); v.ID != "abc" {
				t.Errorf("video id = %q, want abc", v.ID)
			}
		})
	}
}

func TestMetadataWorker_Handle_Fresh(t *testing.T) {
	tests := []struct {
		name      string
		fresh     bool
		invalidFn func(ctx context.Context, id string) error
		wantCalls []string
		wantKind  ErrorKind
	}{
		{
			name:      "cached",
			wantCalls: []string{"get:abc"},
		},
		{
			name:      "fresh invalidates first",
			fresh:     true,
			wantCalls: []string{"invalidate:abc", "get:abc"},
		},
		{
			name:  "invalidate fails",
			fresh: true,
			invalidFn: func(ctx context.Context, id string) error {
				return errors.New("redis down")
			},
			wantCalls: []string{"invalidate:abc"},
			wantKind:  KindBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{invalidateFn: tt.invalidFn}
			w := NewMetadataWorker(backend)

			_, err := w.Handle(context.Background(), Request{Type: TypeMetadata, VideoID: "abc", Fresh: tt.fresh})
			if tt.wantKind != "" {
				if Kind(err) != tt.wantKind {
					t.Errorf("Kind = %q, want %q (error %v)", Kind(err), tt.wantKind, err)
				}
			} else if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}

			if diff := cmp.Diff(tt.wantCalls, backend.calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
