package repository

import "errors"

// Backend failure modes. Implementations wrap one of these so callers can
// classify with errors.Is.
var (
	// ErrNetwork is returned when the backend cannot be reached or answers with a server error.
	ErrNetwork = errors.New("backend network error")

	// ErrQuotaExceeded is returned when the backend rejects the call for quota or rate limits.
	ErrQuotaExceeded = errors.New("backend quota exceeded")

	// ErrInvalidResponse is returned when the backend answers with something that cannot be used.
	ErrInvalidResponse = errors.New("backend returned an invalid response")

	// ErrVideoNotFound is returned when a video ID does not exist on the backend.
	ErrVideoNotFound = errors.New("video not found")
)
