package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hszk-dev/tubelytics/internal/infrastructure/metrics"
)

// SupervisorConfig holds configuration for Supervisor.
type SupervisorConfig struct {
	// Concurrency is the number of worker goroutines per category.
	Concurrency int
	// QueueSize bounds each category's mailbox. A full mailbox sheds requests.
	QueueSize int
	// MaxRestarts is the number of crash restarts allowed per category within RestartWindow.
	MaxRestarts int
	// RestartWindow is the rolling window MaxRestarts is counted over.
	RestartWindow time.Duration
}

// DefaultSupervisorConfig returns the default configuration.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Concurrency:   8,
		QueueSize:     64,
		MaxRestarts:   10,
		RestartWindow: time.Minute,
	}
}

type result struct {
	payload any
	err     error
}

type call struct {
	ctx   context.Context
	req   Request
	reply chan result
}

// pool is the set of workers serving one category.
type pool struct {
	category Category
	factory  WorkerFactory
	mailbox  chan call

	mu       sync.Mutex
	restarts []time.Time

	halted   chan struct{}
	haltOnce sync.Once
}

// Supervisor owns the worker pools. A worker that panics is replaced from its
// factory; a category that crashes more than MaxRestarts times within
// RestartWindow is halted and reported on Fatal.
type Supervisor struct {
	cfg    SupervisorConfig
	logger *slog.Logger
	pools  map[Category]*pool
	now    func() time.Time

	fatal    chan error
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSupervisor creates a Supervisor with one pool per factory.
// Call Start to launch the workers.
func NewSupervisor(cfg SupervisorConfig, factories map[Category]WorkerFactory, logger *slog.Logger) *Supervisor {
	def := DefaultSupervisorConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = def.MaxRestarts
	}
	if cfg.RestartWindow <= 0 {
		cfg.RestartWindow = def.RestartWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	pools := make(map[Category]*pool, len(factories))
	for category, factory := range factories {
		pools[category] = &pool{
			category: category,
			factory:  factory,
			mailbox:  make(chan call, cfg.QueueSize),
			halted:   make(chan struct{}),
		}
	}

	return &Supervisor{
		cfg:    cfg,
		logger: logger,
		pools:  pools,
		now:    time.Now,
		fatal:   make(chan error, len(pools)),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches Concurrency workers per category.
func (s *Supervisor) Start() {
	for _, p := range s.pools {
		for i := 0; i < s.cfg.Concurrency; i++ {
			s.wg.Add(1)
			go s.run(p)
		}
	}
	s.logger.Info("supervisor started",
		slog.Int("categories", len(s.pools)),
		slog.Int("concurrency", s.cfg.Concurrency),
	)
}

// Stop halts all workers and waits for in-flight requests to finish.
// Requests still queued are failed with ErrWorkerUnavailable.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()

		for _, p := range s.pools {
			drain(p.mailbox, fmt.Errorf("%w: supervisor stopped", ErrWorkerUnavailable))
		}
		close(s.stopped)
	})
	<-s.stopped
}

// Fatal delivers one error per category that exceeded its restart limit.
func (s *Supervisor) Fatal() <-chan error {
	return s.fatal
}

// Degraded returns the halted categories, sorted.
func (s *Supervisor) Degraded() []Category {
	var out []Category
	for category, p := range s.pools {
		select {
		case <-p.halted:
			out = append(out, category)
		default:
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ask hands req to a worker of category and waits for its reply or for ctx
// to end. A full mailbox fails immediately with ErrOverloaded.
func (s *Supervisor) Ask(ctx context.Context, category Category, req Request) (any, error) {
	p, ok := s.pools[category]
	if !ok {
		return nil, fmt.Errorf("%w: no workers for category %q", ErrWorkerUnavailable, category)
	}

	select {
	case <-p.halted:
		return nil, fmt.Errorf("%w: category %s halted", ErrWorkerUnavailable, category)
	case <-s.stop:
		return nil, fmt.Errorf("%w: supervisor stopped", ErrWorkerUnavailable)
	default:
	}

	c := call{ctx: ctx, req: req, reply: make(chan result, 1)}
	select {
	case p.mailbox <- c:
	default:
		return nil, fmt.Errorf("%w: category %s", ErrOverloaded, category)
	}

	select {
	case r := <-c.reply:
		return r.payload, r.err
	case <-p.halted:
		select {
		case r := <-c.reply:
			return r.payload, r.err
		default:
			return nil, fmt.Errorf("%w: category %s halted", ErrWorkerUnavailable, category)
		}
	case <-s.stopped:
		// Every worker has exited; a call enqueued after the drain gets no reply.
		select {
		case r := <-c.reply:
			return r.payload, r.err
		default:
			return nil, fmt.Errorf("%w: supervisor stopped", ErrWorkerUnavailable)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// run is one worker goroutine of p.
func (s *Supervisor) run(p *pool) {
	defer s.wg.Done()

	w := p.factory()
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		select {
		case <-s.stop:
			return
		case <-p.halted:
			return
		case c := <-p.mailbox:
			if err := c.ctx.Err(); err != nil {
				c.reply <- result{err: fmt.Errorf("%w: expired in queue: %w", ErrTimeout, err)}
				continue
			}

			res, crashed := s.invoke(p, w, c)
			c.reply <- res
			if !crashed {
				continue
			}

			if !s.allowRestart(p) {
				s.escalate(p)
				return
			}
			w = p.factory()
		}
	}
}

// invoke runs one request, turning a panic into ErrWorkerCrash.
func (s *Supervisor) invoke(p *pool, w Worker, c call) (res result, crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker crashed",
				slog.String("category", string(p.category)),
				slog.String("request_type", string(c.req.Type)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			res = result{err: fmt.Errorf("%w: %v", ErrWorkerCrash, r)}
			crashed = true
		}
	}()

	payload, err := w.Handle(c.ctx, c.req)
	return result{payload: payload, err: err}, false
}

// allowRestart records a restart of p unless the rolling window is full.
func (s *Supervisor) allowRestart(p *pool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.cfg.RestartWindow)
	kept := p.restarts[:0]
	for _, t := range p.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.restarts = kept

	if len(p.restarts) >= s.cfg.MaxRestarts {
		return false
	}
	p.restarts = append(p.restarts, now)

	metrics.WorkerRestartsTotal.WithLabelValues(string(p.category)).Inc()
	s.logger.Warn("restarting worker",
		slog.String("category", string(p.category)),
		slog.Int("restarts_in_window", len(p.restarts)),
	)
	return true
}

// escalate halts p, fails its queued requests and reports on Fatal.
func (s *Supervisor) escalate(p *pool) {
	p.haltOnce.Do(func() {
		close(p.halted)

		err := fmt.Errorf("%w: category %s exceeded %d restarts in %s",
			ErrWorkerUnavailable, p.category, s.cfg.MaxRestarts, s.cfg.RestartWindow)
		s.logger.Error("worker category halted", slog.String("category", string(p.category)), slog.Any("error", err))

		select {
		case s.fatal <- err:
		default:
		}

		drain(p.mailbox, fmt.Errorf("%w: category %s halted", ErrWorkerUnavailable, p.category))
	})
}

// drain fails every call left in mailbox with err.
func drain(mailbox chan call, err error) {
	for {
		select {
		case c := <-mailbox:
			c.reply <- result{err: err}
		default:
			return
		}
	}
}
