package dispatch

import (
	"context"
	"errors"

	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

// Dispatch errors. Every failure reported to a client wraps one of these.
var (
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrTimeout            = errors.New("request timed out")
	ErrMalformedRequest   = errors.New("malformed request")
	ErrWorkerCrash        = errors.New("worker crashed")
	ErrWorkerUnavailable  = errors.New("worker unavailable")
	ErrOverloaded         = errors.New("worker queue full")
	ErrRouterClosed       = errors.New("router closed")
)

// ErrorKind is the failure taxonomy carried in the "kind" field of a failure envelope.
type ErrorKind string

const (
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindTimeout            ErrorKind = "timeout"
	KindMalformedRequest   ErrorKind = "malformed_request"
	KindWorkerCrash        ErrorKind = "worker_crash"
	KindWorkerUnavailable  ErrorKind = "worker_unavailable"
	KindOverloaded         ErrorKind = "overloaded"
)

// Kind classifies err. Anything unrecognized is reported as a backend failure.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMalformedRequest),
		errors.Is(err, model.ErrEmptyQuery),
		errors.Is(err, model.ErrEmptyVideoID):
		return KindMalformedRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrWorkerCrash):
		return KindWorkerCrash
	case errors.Is(err, ErrWorkerUnavailable), errors.Is(err, ErrRouterClosed):
		return KindWorkerUnavailable
	case errors.Is(err, ErrOverloaded):
		return KindOverloaded
	default:
		return KindBackendUnavailable
	}
}
