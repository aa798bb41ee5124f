package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/tubelytics/internal/infrastructure/metrics"
)

// DefaultTimeout bounds how long a dispatched request waits for its worker.
const DefaultTimeout = 20 * time.Second

// Originator receives the serialized reply to a request.
type Originator interface {
	Send(msg []byte) error
}

// OriginatorFunc adapts a function to Originator.
type OriginatorFunc func(msg []byte) error

func (f OriginatorFunc) Send(msg []byte) error {
	return f(msg)
}

// Dispatcher hands a request to the worker pool of a category.
type Dispatcher interface {
	Ask(ctx context.Context, category Category, req Request) (any, error)
}

// PendingRequest is a dispatched request awaiting its worker's reply.
type PendingRequest struct {
	CorrelationID string
	Request       Request
	Category      Category
	Originator    Originator
	Deadline      time.Time
}

// RouterConfig holds configuration for Router.
type RouterConfig struct {
	// Timeout bounds each dispatch.
	Timeout time.Duration
	// SessionID is used for search requests that carry no sessionId.
	SessionID string
}

// Router decodes client messages, dispatches them to workers with a deadline
// and emits exactly one reply per request. Replies are matched by correlation
// id and may arrive in any order.
type Router struct {
	dispatcher Dispatcher
	timeout    time.Duration
	sessionID  string
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]*PendingRequest
	closed  bool
	wg      sync.WaitGroup
}

// NewRouter creates a Router for one connection.
func NewRouter(dispatcher Dispatcher, cfg RouterConfig, logger *slog.Logger) *Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		dispatcher: dispatcher,
		timeout:    cfg.Timeout,
		sessionID:  cfg.SessionID,
		logger:     logger,
		pending:    make(map[string]*PendingRequest),
	}
}

// SessionID returns the connection's default session.
func (r *Router) SessionID() string {
	return r.sessionID
}

// Submit decodes raw and dispatches it asynchronously. Undecodable messages
// are answered immediately with a malformed_request failure. The reply goes
// to o.
func (r *Router) Submit(ctx context.Context, raw []byte, o Originator) {
	req, err := Decode(raw)
	if err == nil && req.Type.needsSession() {
		if req.SessionID == "" {
			req.SessionID = r.sessionID
		}
		if req.SessionID == "" {
			err = fmt.Errorf("%w: %s requires sessionId", ErrMalformedRequest, req.Type)
		}
	}
	if err != nil {
		metrics.DispatchTotal.WithLabelValues("none", metrics.OutcomeFailed).Inc()
		r.logger.Warn("rejected client message", slog.String("request_id", req.ID), slog.Any("error", err))
		r.emitFailure(req, err, o)
		return
	}

	category, _ := req.Type.Category()
	p := &PendingRequest{
		CorrelationID: uuid.NewString(),
		Request:       req,
		Category:      category,
		Originator:    o,
		Deadline:      time.Now().Add(r.timeout),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.emitFailure(req, ErrRouterClosed, o)
		return
	}
	r.pending[p.CorrelationID] = p
	r.wg.Add(1)
	r.mu.Unlock()
	metrics.PendingRequests.Inc()

	go r.dispatch(ctx, p)
}

// dispatch asks the worker and races the reply against the deadline.
func (r *Router) dispatch(parent context.Context, p *PendingRequest) {
	defer r.wg.Done()

	ctx, cancel := context.WithDeadline(parent, p.Deadline)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		payload, err := r.dispatcher.Ask(ctx, p.Category, p.Request)
		done <- result{payload: payload, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: fmt.Errorf("%w after %s: %w", ErrTimeout, r.timeout, ctx.Err())}
	}

	// The originator went away before the deadline; that is not a timeout.
	if res.err != nil && errors.Is(parent.Err(), context.Canceled) {
		res = result{err: fmt.Errorf("%w: request canceled: %w", ErrRouterClosed, parent.Err())}
	}

	r.resolve(p, res)
}

// resolve emits the terminal reply for p exactly once.
func (r *Router) resolve(p *PendingRequest, res result) {
	r.mu.Lock()
	_, ok := r.pending[p.CorrelationID]
	delete(r.pending, p.CorrelationID)
	r.mu.Unlock()
	if !ok {
		return
	}
	metrics.PendingRequests.Dec()

	log := r.logger.With(
		slog.String("correlation_id", p.CorrelationID),
		slog.String("request_id", p.Request.ID),
		slog.String("type", string(p.Request.Type)),
	)

	if res.err != nil {
		outcome := metrics.OutcomeFailed
		if Kind(res.err) == KindTimeout {
			outcome = metrics.OutcomeTimedOut
		}
		metrics.DispatchTotal.WithLabelValues(string(p.Category), outcome).Inc()
		log.Warn("request failed", slog.String("kind", string(Kind(res.err))), slog.Any("error", res.err))
		r.emitFailure(p.Request, res.err, p.Originator)
		return
	}

	msg, err := EncodeResponse(p.Request, res.payload)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(string(p.Category), metrics.OutcomeFailed).Inc()
		log.Error("failed to encode response", slog.Any("error", err))
		r.emitFailure(p.Request, fmt.Errorf("%w: encode response: %w", ErrBackendUnavailable, err), p.Originator)
		return
	}

	metrics.DispatchTotal.WithLabelValues(string(p.Category), metrics.OutcomeCompleted).Inc()
	log.Debug("request completed")
	r.send(p.Originator, msg)
}

func (r *Router) emitFailure(req Request, cause error, o Originator) {
	msg, err := EncodeFailure(req, cause)
	if err != nil {
		r.logger.Error("failed to encode failure", slog.Any("error", errors.Join(cause, err)))
		return
	}
	r.send(o, msg)
}

func (r *Router) send(o Originator, msg []byte) {
	if err := o.Send(msg); err != nil {
		r.logger.Warn("failed to deliver reply", slog.Any("error", err))
	}
}

// Pending returns the number of requests awaiting a reply.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close stops accepting requests and waits for in-flight ones to resolve.
// Every in-flight request resolves by its deadline.
func (r *Router) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
