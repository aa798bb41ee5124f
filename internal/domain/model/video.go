package model

import (
	"errors"
	"time"
)

// Video is a single item returned by the video backend.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	Tags         []string  `json:"tags,omitempty"`
	ViewCount    uint64    `json:"view_count,omitempty"`

	// Filled by the analytics collaborator when the video is part of a search record.
	ReadingEase float64 `json:"reading_ease"`
	GradeLevel  float64 `json:"grade_level"`
}

var (
	ErrEmptyVideoID = errors.New("video ID cannot be empty")
	ErrEmptyQuery   = errors.New("query cannot be empty")
)

// WatchURL returns the public watch page for the video.
func (v *Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// ChannelURL returns the public channel page of the uploader.
func (v *Video) ChannelURL() string {
	return "https://www.youtube.com/channel/" + v.ChannelID
}
