package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

// RequestType is the declared type of a client message.
type RequestType string

const (
	TypeSearch     RequestType = "search"
	TypeRefresh    RequestType = "refresh"
	TypeHistory    RequestType = "history"
	TypeStatistics RequestType = "statistics"
	TypeMetadata   RequestType = "metadata"

	// TypeSession announces the session bound to a connection.
	TypeSession RequestType = "session"
)

// Category selects the worker pool that serves a request.
type Category string

const (
	CategorySearch     Category = "search"
	CategoryStatistics Category = "statistics"
	CategoryMetadata   Category = "metadata"
)

// Categories lists every worker category.
var Categories = []Category{CategorySearch, CategoryStatistics, CategoryMetadata}

// Category returns the worker category for t.
func (t RequestType) Category() (Category, bool) {
	switch t {
	case TypeSearch, TypeRefresh, TypeHistory:
		return CategorySearch, true
	case TypeStatistics:
		return CategoryStatistics, true
	case TypeMetadata:
		return CategoryMetadata, true
	default:
		return "", false
	}
}

// needsSession reports whether t operates on a session's search history.
func (t RequestType) needsSession() bool {
	c, ok := t.Category()
	return ok && c == CategorySearch
}

// Request is an inbound client message.
type Request struct {
	ID         string      `json:"id,omitempty"`
	Type       RequestType `json:"type"`
	SessionID  string      `json:"sessionId,omitempty"`
	Query      string      `json:"query,omitempty"`
	SearchTerm string      `json:"searchTerm,omitempty"`
	VideoID    string      `json:"videoId,omitempty"`
	// Fresh drops any cached metadata for VideoID before the lookup.
	Fresh bool `json:"fresh,omitempty"`
}

// Response is an outbound success message.
type Response struct {
	ID      string      `json:"id,omitempty"`
	Type    RequestType `json:"type"`
	Payload any         `json:"payload"`
}

// Failure is an outbound failure envelope.
type Failure struct {
	ID    string      `json:"id,omitempty"`
	Type  RequestType `json:"type,omitempty"`
	Error string      `json:"error"`
	Kind  ErrorKind   `json:"kind"`
}

// SearchPayload answers search, refresh and history requests.
type SearchPayload struct {
	SessionID string               `json:"sessionId"`
	Records   []model.SearchRecord `json:"records"`
}

// StatisticsPayload answers a statistics request.
type StatisticsPayload struct {
	SearchTerm string            `json:"searchTerm"`
	Words      []model.WordCount `json:"words"`
}

// SessionPayload announces a connection's session.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

// Decode parses and validates a client message. On failure the returned
// Request holds whatever fields could be read so the failure can still echo
// the client's id.
func Decode(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	if _, ok := req.Type.Category(); !ok {
		return req, fmt.Errorf("%w: unknown type %q", ErrMalformedRequest, req.Type)
	}

	switch req.Type {
	case TypeSearch:
		if req.Query == "" {
			return req, fmt.Errorf("%w: search requires query", ErrMalformedRequest)
		}
	case TypeStatistics:
		if req.SearchTerm == "" {
			return req, fmt.Errorf("%w: statistics requires searchTerm", ErrMalformedRequest)
		}
	case TypeMetadata:
		if req.VideoID == "" {
			return req, fmt.Errorf("%w: metadata requires videoId", ErrMalformedRequest)
		}
	}

	return req, nil
}

// EncodeResponse serializes a success message.
func EncodeResponse(req Request, payload any) ([]byte, error) {
	return json.Marshal(Response{ID: req.ID, Type: req.Type, Payload: payload})
}

// EncodeFailure serializes a failure envelope for err.
func EncodeFailure(req Request, err error) ([]byte, error) {
	return json.Marshal(Failure{
		ID:    req.ID,
		Type:  req.Type,
		Error: err.Error(),
		Kind:  Kind(err),
	})
}

// EncodeSession serializes a session announcement.
func EncodeSession(sessionID string) ([]byte, error) {
	return json.Marshal(Response{Type: TypeSession, Payload: SessionPayload{SessionID: sessionID}})
}
