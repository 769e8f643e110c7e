package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskmanager/internal/logger"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 20
	defaultStaleAfter   = 5 * time.Minute
	defaultJobTimeout   = 2 * time.Minute
)

// Handler executes one claimed job. A non-nil error counts as a failed run.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error { return f(ctx, job) }

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithWorkerID(id string) Option {
	return func(s *Scheduler) { s.id = id }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

func WithBatchSize(n int) Option {
	return func(s *Scheduler) { s.batch = n }
}

// WithStaleAfter sets how long a RUNNING claim may live before it is requeued.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Scheduler) { s.staleAfter = d }
}

// WithJobTimeout bounds a single handler run. Stopping the scheduler does
// not cancel a running handler; only this timeout does.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler polls the store for due jobs and runs them one at a time.
// Only one Scheduler should run against a given store.
type Scheduler struct {
	store      Store
	id         string
	interval   time.Duration
	batch      int
	staleAfter time.Duration
	jobTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time

	hmu      sync.RWMutex
	handlers map[string]Handler

	wake chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		id:         "scheduler-1",
		interval:   defaultPollInterval,
		batch:      defaultBatchSize,
		staleAfter: defaultStaleAfter,
		jobTimeout: defaultJobTimeout,
		now:        time.Now,
		handlers:   make(map[string]Handler),
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NewNope()
	}
	if s.interval <= 0 {
		s.interval = defaultPollInterval
	}
	if s.batch <= 0 {
		s.batch = defaultBatchSize
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s
}

// Register binds a handler to a job name, replacing any previous one.
func (s *Scheduler) Register(name string, h Handler) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.handlers[name] = h
}

func (s *Scheduler) handler(name string) (Handler, bool) {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	h, ok := s.handlers[name]
	return h, ok
}

// Wake asks the poll loop to run a pass now. It never blocks.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start launches the poll loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	s.logger.Info("scheduler started",
		slog.String("worker_id", s.id),
		slog.Duration("interval", s.interval),
	)
	return nil
}

// Stop ends the poll loop and waits for the in-flight job, bounded by ctx.
// The in-flight job itself is not cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return ErrNotStarted
	}
	s.cancel()

	var err error
	select {
	case <-s.done:
	case <-ctx.Done():
		err = fmt.Errorf("jobs: stop scheduler: %w", ctx.Err())
	}
	s.cancel, s.done = nil, nil
	s.logger.Info("scheduler stopped", slog.String("worker_id", s.id))
	return err
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
		if _, err := s.RunDue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler pass failed", slog.String("error", err.Error()))
		}
	}
}

// RunDue performs one pass: requeue stale claims, claim due jobs, run them.
// It returns the number of jobs executed.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	now := s.now()

	if s.staleAfter > 0 {
		n, err := s.store.ReleaseStale(ctx, now.Add(-s.staleAfter))
		if err != nil {
			return 0, err
		}
		if n > 0 {
			s.logger.Warn("requeued stale jobs", slog.Int64("count", n))
		}
	}

	claimed, err := s.store.ClaimDue(ctx, s.id, now, s.batch)
	if err != nil {
		return 0, err
	}

	for i := range claimed {
		if ctx.Err() != nil {
			// leave the rest RUNNING; ReleaseStale picks them up later
			return i, ctx.Err()
		}
		s.execute(ctx, &claimed[i])
	}
	return len(claimed), nil
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	log := s.logger.With(
		slog.Uint64("job_id", job.ID),
		slog.String("job", job.Name),
		slog.Int("fail_count", job.FailCount),
	)

	// a started job runs to completion even if the pass is being cancelled
	rec := context.WithoutCancel(ctx)
	jctx, cancel := context.WithTimeout(rec, s.jobTimeout)
	err := s.invoke(jctx, job)
	cancel()
	if err == nil {
		if err := s.store.MarkRan(rec, job.ID); err != nil {
			log.Error("mark job ran", slog.String("error", err.Error()))
			return
		}
		log.Info("job succeeded")
		return
	}

	log.Error("job failed", slog.String("error", err.Error()))
	if err := s.store.IncrementFail(rec, job.ID, err.Error()); err != nil {
		log.Error("record job failure", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) invoke(ctx context.Context, job *Job) (err error) {
	h, ok := s.handler(job.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, job)
}
