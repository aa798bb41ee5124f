package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/metrics"
)

const (
	// DefaultSessionCapacity is the number of search records kept per session.
	DefaultSessionCapacity = 10
	// DefaultPageSize is the number of videos requested per backend search.
	DefaultPageSize = 50
)

// Enricher derives analysis values for a freshly fetched result set.
// It may modify the videos in place.
type Enricher interface {
	Enrich(videos []model.Video) model.Analysis
}

// SessionCacheConfig holds configuration for SessionCache.
type SessionCacheConfig struct {
	// Capacity is the maximum number of search records per session.
	Capacity int
	// PageSize is the maxResults passed to the backend on a cache miss.
	PageSize int
	// FetchTimeout bounds a miss fetch shared by concurrent callers.
	FetchTimeout time.Duration
}

// DefaultSessionCacheConfig returns the default configuration.
func DefaultSessionCacheConfig() SessionCacheConfig {
	return SessionCacheConfig{
		Capacity:     DefaultSessionCapacity,
		PageSize:     DefaultPageSize,
		FetchTimeout: DefaultFetchTimeout,
	}
}

// session is one caller's bounded search history, most recent first.
// mu serializes every read and write of records.
type session struct {
	mu      sync.Mutex
	records []*model.SearchRecord
}

// SessionCache keeps a bounded, recency-ordered list of search records per
// session and falls back to the video backend on a miss.
//
// Each session has its own lock. The session index lock is only held to find
// or create a session, never across a backend call, so unrelated sessions do
// not contend.
type SessionCache struct {
	backend  repository.VideoBackend
	enricher Enricher
	capacity     int
	pageSize     int
	fetchTimeout time.Duration

	nextID atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*session

	sfGroup singleflight.Group
}

// NewSessionCache creates a SessionCache. enricher may be nil.
func NewSessionCache(backend repository.VideoBackend, enricher Enricher, cfg SessionCacheConfig) *SessionCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultSessionCapacity
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &SessionCache{
		backend:      backend,
		enricher:     enricher,
		capacity:     cfg.Capacity,
		pageSize:     cfg.PageSize,
		fetchTimeout: cfg.FetchTimeout,
		sessions:     make(map[string]*session),
	}
}

// Capacity returns the per-session record limit.
func (c *SessionCache) Capacity() int {
	return c.capacity
}

// CreateSession allocates a new session key with an empty history.
// Keys come from a counter owned by the cache; keys already claimed by a
// caller are skipped.
func (c *SessionCache) CreateSession() string {
	for {
		id := strconv.FormatUint(c.nextID.Add(1)-1, 10)

		c.mu.Lock()
		if _, exists := c.sessions[id]; !exists {
			c.sessions[id] = &session{}
			c.mu.Unlock()
			metrics.SessionsActive.Inc()
			return id
		}
		c.mu.Unlock()
	}
}

// SessionList returns the session's records, most recent first.
// An unknown key gets a new empty session.
func (c *SessionCache) SessionList(sessionID string) []model.SearchRecord {
	s := c.session(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.records)
}

// Resolve answers query for the session.
//
// On a hit the record moves to the front and no backend call is made. On a
// miss the backend is queried, the result is inserted at the front and the
// oldest record is evicted if the session is over capacity. A backend failure
// leaves the session untouched.
func (c *SessionCache) Resolve(ctx context.Context, sessionID, query string) ([]model.SearchRecord, error) {
	if query == "" {
		return nil, model.ErrEmptyQuery
	}

	s := c.session(sessionID)

	s.mu.Lock()
	if i := s.indexOf(query); i >= 0 {
		s.moveToFront(i)
		out := snapshot(s.records)
		s.mu.Unlock()
		metrics.SessionCacheLookupsTotal.WithLabelValues(metrics.LookupHit).Inc()
		return out, nil
	}
	s.mu.Unlock()

	metrics.SessionCacheLookupsTotal.WithLabelValues(metrics.LookupMiss).Inc()

	res, err := c.fetchShared(ctx, sessionID, query)
	if err != nil {
		metrics.SessionCacheLookupsTotal.WithLabelValues(metrics.LookupError).Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent miss for the same query may have inserted it already.
	if i := s.indexOf(query); i >= 0 {
		s.moveToFront(i)
	} else {
		s.insert(model.NewSearchRecord(query, res.videos, res.analysis), c.capacity)
	}
	return snapshot(s.records), nil
}

// Refresh re-fetches every cached query of the session concurrently and
// replaces each record's results in place, keeping the order.
// If any fetch fails no record is modified and the first error is returned.
// An empty session returns an empty list without calling the backend.
func (c *SessionCache) Refresh(ctx context.Context, sessionID string) ([]model.SearchRecord, error) {
	s := c.session(sessionID)

	s.mu.Lock()
	queries := make([]string, len(s.records))
	for i, r := range s.records {
		queries[i] = r.Query
	}
	s.mu.Unlock()

	if len(queries) == 0 {
		return []model.SearchRecord{}, nil
	}

	results := make([]fetchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := c.fetch(gctx, q)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refresh session %s: %w", sessionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Records evicted while fetching are skipped; new ones are left as they are.
	for i, q := range queries {
		if j := s.indexOf(q); j >= 0 {
			s.records[j].Replace(results[i].videos, results[i].analysis)
		}
	}
	return snapshot(s.records), nil
}

type fetchResult struct {
	videos   []model.Video
	analysis model.Analysis
}

// fetchShared coalesces concurrent misses for the same session and query.
func (c *SessionCache) fetchShared(ctx context.Context, sessionID, query string) (fetchResult, error) {
	key := sessionID + "\x00" + query
	v, err := doShared(ctx, &c.sfGroup, metrics.GroupSessionSearch, key, c.fetchTimeout, func(ctx context.Context) (any, error) {
		return c.fetch(ctx, query)
	})
	if err != nil {
		if ctx.Err() != nil {
			return fetchResult{}, fmt.Errorf("search %q: %w", query, err)
		}
		return fetchResult{}, err
	}
	return v.(fetchResult), nil
}

func (c *SessionCache) fetch(ctx context.Context, query string) (fetchResult, error) {
	videos, err := c.backend.Search(ctx, query, c.pageSize)
	if err != nil {
		return fetchResult{}, fmt.Errorf("search %q: %w", query, err)
	}

	var analysis model.Analysis
	if c.enricher != nil {
		analysis = c.enricher.Enrich(videos)
	}
	return fetchResult{videos: videos, analysis: analysis}, nil
}

// session returns the session for id, creating it if needed.
func (c *SessionCache) session(id string) *session {
	c.mu.RLock()
	s, ok := c.sessions[id]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[id]; ok {
		return s
	}
	s = &session{}
	c.sessions[id] = s
	metrics.SessionsActive.Inc()
	return s
}

// indexOf finds query by literal string equality. Caller holds s.mu.
func (s *session) indexOf(query string) int {
	for i, r := range s.records {
		if r.Query == query {
			return i
		}
	}
	return -1
}

// moveToFront makes records[i] the most recent. Caller holds s.mu.
func (s *session) moveToFront(i int) {
	r := s.records[i]
	copy(s.records[1:i+1], s.records[:i])
	s.records[0] = r
	r.Touch()
}

// insert prepends r and drops the oldest records beyond capacity. Caller holds s.mu.
func (s *session) insert(r *model.SearchRecord, capacity int) {
	s.records = append(s.records, nil)
	copy(s.records[1:], s.records)
	s.records[0] = r

	if over := len(s.records) - capacity; over > 0 {
		for i := capacity; i < len(s.records); i++ {
			s.records[i] = nil
		}
		s.records = s.records[:capacity]
		metrics.SessionCacheEvictionsTotal.Add(float64(over))
	}
}

// snapshot copies records so callers never share state with the cache.
func snapshot(records []*model.SearchRecord) []model.SearchRecord {
	out := make([]model.SearchRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
