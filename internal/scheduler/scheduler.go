package scheduler

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/dmreyes/idextract/internal/common"
)

// Runner is what the scheduler drives for each accepted job. Satisfied
// by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, id uuid.UUID) error
}

// Scheduler fans submitted jobs out to a fixed pool of workers over a
// bounded queue. A full queue rejects synchronously rather than
// blocking the submitter, and a job id is never run by two workers at
// once.
type Scheduler struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan uuid.UUID
	wg   sync.WaitGroup
	once sync.Once

	mu       sync.Mutex
	closed   bool
	inflight map[uuid.UUID]struct{}
}

type Option func(*Scheduler)

func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.ch = make(chan uuid.UUID, n)
		}
	}
}
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		runner:   runner,
		logger:   logger,
		workers:  4,
		timeout:  3 * time.Minute,
		ch:       make(chan uuid.UUID, 64),
		inflight: make(map[uuid.UUID]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.start()
	return s
}

func (s *Scheduler) start() {
	s.once.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go func(workerID int) {
				defer s.wg.Done()
				s.logger.Info("scheduler.worker.started", "worker_id", workerID)

				for id := range s.ch {
					ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
					ctx = common.WithJobID(ctx, id.String())
					err := s.runner.Run(ctx, id)
					cancel()
					s.release(id)

					if err != nil {
						s.logger.Error("scheduler.job.failed", "worker_id", workerID, "job_id", id, "error", err)
					} else {
						s.logger.Info("scheduler.job.ok", "worker_id", workerID, "job_id", id)
					}
				}

				s.logger.Info("scheduler.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit accepts a job for asynchronous execution. It never blocks:
// a full queue returns ErrSchedulerSaturated, a duplicate of a job
// already queued or running returns nil without enqueueing twice.
func (s *Scheduler) Submit(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("scheduler.submit.rejected", "job_id", id, "reason", "shutting down")
		return common.ErrSchedulerSaturated
	}
	if _, dup := s.inflight[id]; dup {
		s.logger.Warn("scheduler.submit.duplicate", "job_id", id)
		return nil
	}
	select {
	case s.ch <- id:
		s.inflight[id] = struct{}{}
		s.logger.Info("scheduler.submit.ok", "job_id", id, "queued", len(s.ch))
		return nil
	default:
		s.logger.Warn("scheduler.submit.saturated", "job_id", id, "capacity", cap(s.ch))
		return common.ErrSchedulerSaturated
	}
}

func (s *Scheduler) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Depth reports queued plus running jobs.
func (s *Scheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Shutdown stops accepting work and waits for the queue to drain, up
// to the context deadline. Jobs still queued are executed before the
// workers exit.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("scheduler.shutdown.interrupted")
	case <-done:
		s.logger.Info("scheduler.shutdown.drained")
	}
}
