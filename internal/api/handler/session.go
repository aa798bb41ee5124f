package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

// Request/Response types

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type SearchRecordResponse struct {
	Query       string        `json:"query"`
	Videos      []model.Video `json:"videos"`
	Sentiment   string        `json:"sentiment"`
	ReadingEase float64       `json:"reading_ease"`
	GradeLevel  float64       `json:"grade_level"`
	FetchedAt   string        `json:"fetched_at"`
	TouchedAt   string        `json:"touched_at"`
}

type SessionSearchesResponse struct {
	SessionID string                 `json:"session_id"`
	Searches  []SearchRecordResponse `json:"searches"`
}

// SessionStore is the part of the session cache the HTTP API exposes.
type SessionStore interface {
	CreateSession() string
	SessionList(sessionID string) []model.SearchRecord
}

// SessionHandler handles session-related HTTP requests.
type SessionHandler struct {
	store SessionStore
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store SessionStore) *SessionHandler {
	return &SessionHandler{store: store}
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: h.store.CreateSession(),
	})
}

// Searches handles GET /v1/sessions/{id}/searches
func (h *SessionHandler) Searches(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "invalid_session_id", "Session ID is required")
		return
	}

	records := h.store.SessionList(sessionID)

	resp := SessionSearchesResponse{
		SessionID: sessionID,
		Searches:  make([]SearchRecordResponse, len(records)),
	}
	for i, rec := range records {
		resp.Searches[i] = toSearchRecordResponse(rec)
	}

	JSON(w, http.StatusOK, resp)
}

func toSearchRecordResponse(r model.SearchRecord) SearchRecordResponse {
	videos := r.Videos
	if videos == nil {
		videos = []model.Video{}
	}
	return SearchRecordResponse{
		Query:       r.Query,
		Videos:      videos,
		Sentiment:   r.Analysis.Sentiment.String(),
		ReadingEase: r.Analysis.ReadingEase,
		GradeLevel:  r.Analysis.GradeLevel,
		FetchedAt:   r.FetchedAt.Format(timeFormat),
		TouchedAt:   r.TouchedAt.Format(timeFormat),
	}
}
