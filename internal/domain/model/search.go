package model

import (
	"slices"
	"time"
)

// Sentiment is the overall mood of a result set's descriptions.
type Sentiment string

const (
	SentimentHappy   Sentiment = ":-)"
	SentimentSad     Sentiment = ":-("
	SentimentNeutral Sentiment = ":-|"
)

func (s Sentiment) String() string {
	return string(s)
}

// Analysis holds values derived from a result set. The session cache stores
// it alongside the results without interpreting it.
type Analysis struct {
	Sentiment   Sentiment `json:"sentiment"`
	ReadingEase float64   `json:"reading_ease"`
	GradeLevel  float64   `json:"grade_level"`
}

// SearchRecord is one cached query of a session.
type SearchRecord struct {
	Query     string    `json:"query"`
	Videos    []Video   `json:"videos"`
	Analysis  Analysis  `json:"analysis"`
	FetchedAt time.Time `json:"fetched_at"`
	TouchedAt time.Time `json:"touched_at"`
}

// NewSearchRecord wraps a fresh backend result for query.
func NewSearchRecord(query string, videos []Video, analysis Analysis) *SearchRecord {
	now := time.Now()
	return &SearchRecord{
		Query:     query,
		Videos:    videos,
		Analysis:  analysis,
		FetchedAt: now,
		TouchedAt: now,
	}
}

// Touch marks the record as just used.
func (r *SearchRecord) Touch() {
	r.TouchedAt = time.Now()
}

// Replace swaps in a re-fetched result set, keeping the query and recency marker.
func (r *SearchRecord) Replace(videos []Video, analysis Analysis) {
	r.Videos = videos
	r.Analysis = analysis
	r.FetchedAt = time.Now()
}

// Clone returns a copy of r that shares no slices with it.
func (r *SearchRecord) Clone() SearchRecord {
	c := *r
	c.Videos = make([]Video, len(r.Videos))
	for i, v := range r.Videos {
		v.Tags = slices.Clone(v.Tags)
		c.Videos[i] = v
	}
	return c
}

// WordCount is one entry of a word-frequency table.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}
