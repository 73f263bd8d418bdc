package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/pipeline"
)

// Runner is the single-job trigger the scheduler drives.
type Runner interface {
	RunOnce(ctx context.Context, attemptID string) pipeline.Outcome
}

// Scheduler runs a fixed set of workers. Each worker drains the queue with RunOnce("") and then
// sleeps until the poll interval elapses, a wake-up arrives, or a forced job is handed over.
type Scheduler struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	poll    time.Duration
	wakeups <-chan string

	ch     chan Job
	wake   chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

var _ Queue = (*Scheduler)(nil)

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
			s.ch = make(chan Job, n)
		}
	}
}

func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithWakeups feeds notifier messages to idle workers.
func WithWakeups(ch <-chan string) Option {
	return func(s *Scheduler) { s.wakeups = ch }
}

func NewScheduler(runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		runner:  runner,
		logger:  logger,
		workers: 2,
		timeout: 3 * time.Minute,
		poll:    5 * time.Second,
		ch:      make(chan Job, 256),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the workers. It is safe to call more than once.
func (s *Scheduler) Start() {
	s.once.Do(func() {
		if s.wakeups != nil {
			s.wg.Add(1)
			go s.forwardWakeups()
		}
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.work(i + 1)
		}
		s.logger.Info("scheduler started", "workers", s.workers, "poll_interval", s.poll, "run_timeout", s.timeout)
	})
}

func (s *Scheduler) forwardWakeups() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case id, ok := <-s.wakeups:
			if !ok {
				return
			}
			s.logger.Debug("scheduler wakeup", "attempt_id", id)
			s.Wake()
		}
	}
}

// Wake nudges one idle worker to drain the queue now.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) work(workerID int) {
	defer s.wg.Done()
	s.logger.Info("worker started", "worker_id", workerID)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.drain(workerID)
	for {
		select {
		case <-s.stop:
			s.logger.Info("worker stopped", "worker_id", workerID)
			return
		case job := <-s.ch:
			s.runOne(workerID, job.AttemptID)
			s.drain(workerID)
		case <-s.wake:
			s.drain(workerID)
		case <-ticker.C:
			s.drain(workerID)
		}
	}
}

// drain processes queued jobs until none remain or the scheduler stops. A worker that hits an
// error goes back to sleep instead of spinning on it.
func (s *Scheduler) drain(workerID int) {
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		out := s.runOne(workerID, "")
		if out.Status != pipeline.StatusProcessed {
			return
		}
	}
}

func (s *Scheduler) runOne(workerID int, attemptID string) pipeline.Outcome {
	ctx, cancel := context.WithTimeout(common.WithWorkerID(context.Background(), workerID), s.timeout)
	defer cancel()

	out := s.runner.RunOnce(ctx, attemptID)
	switch out.Status {
	case pipeline.StatusError:
		s.logger.Error("processing failed", "worker_id", workerID, "attempt_id", out.AttemptID, "error", out.Err)
	case pipeline.StatusProcessed:
		s.logger.Info("processed attempt", "worker_id", workerID, "attempt_id", out.AttemptID, "mode", out.Mode, "provider", out.Provider)
	default:
		if !out.NoWork() {
			s.logger.Info("attempt skipped", "worker_id", workerID, "attempt_id", out.AttemptID, "reason", out.Reason)
		}
	}
	return out
}

// Enqueue hands a forced attempt to the next free worker.
func (s *Scheduler) Enqueue(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("cannot enqueue: scheduler is shutting down", "attempt_id", job.AttemptID)
		return common.PreconditionError("scheduler is shutting down")
	}
	select {
	case s.ch <- job:
		s.logger.Info("queued attempt for processing", "attempt_id", job.AttemptID, "trace_id", job.TraceID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the workers after their current job and waits for them or for ctx.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("shutdown interrupted by context")
	case <-done:
		s.logger.Info("scheduler drained, shutdown complete")
	}
}
