package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/docintel/internal/common"
)

type ProcessorQueue struct {
	handle  Handler
	onFail  FailureHandler
	locker  Locker
	lockTry int
	backoff time.Duration
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithLocker(l Locker) Option {
	return func(q *ProcessorQueue) {
		if l != nil {
			q.locker = l
		}
	}
}

// WithFailureHandler is called for a job the queue could not hand to the
// handler, so the job does not stay pending.
func WithFailureHandler(f FailureHandler) Option {
	return func(q *ProcessorQueue) {
		q.onFail = f
	}
}

// WithLockRetry sets how often a failing lock is retried before the job is
// given up; the wait grows linearly from backoff.
func WithLockRetry(attempts int, backoff time.Duration) Option {
	return func(q *ProcessorQueue) {
		if attempts > 0 {
			q.lockTry = attempts
		}
		if backoff > 0 {
			q.backoff = backoff
		}
	}
}

func NewProcessorQueue(handle Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handle:  handle,
		locker:  noopLocker{},
		lockTry: 3,
		backoff: 200 * time.Millisecond,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	log := q.logger.With("worker_id", workerID, "job_id", job.JobID, "tenant_id", job.TenantID, "correlation_id", job.CorrelationID)

	ctx, cancel := common.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	release, ok, err := q.acquire(ctx, job)
	if err != nil {
		log.Error("job lock unavailable, giving up", "attempts", q.lockTry, "error", err)
		q.fail(job, fmt.Errorf("acquire job lock: %w", err))
		return
	}
	if !ok {
		log.Info("job already being processed elsewhere, skipped")
		return
	}
	defer release()

	start := time.Now()
	if err := q.handle(ctx, job); err != nil {
		log.Error("processing failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return
	}
	log.Info("processed job successfully", "wait_ms", start.Sub(job.SubmittedAt).Milliseconds(), "elapsed_ms", time.Since(start).Milliseconds())
}

func (q *ProcessorQueue) acquire(ctx context.Context, job Job) (func(), bool, error) {
	var err error
	for attempt := 1; ; attempt++ {
		var (
			release func()
			ok      bool
		)
		release, ok, err = q.locker.Acquire(ctx, LockKey(job))
		if err == nil {
			return release, ok, nil
		}
		if attempt >= q.lockTry {
			return nil, false, err
		}
		q.logger.Warn("job lock failed, retrying", "job_id", job.JobID, "attempt", attempt, "error", err)
		select {
		case <-time.After(time.Duration(attempt) * q.backoff):
		case <-ctx.Done():
			return nil, false, errors.Join(err, ctx.Err())
		}
	}
}

func (q *ProcessorQueue) fail(job Job, cause error) {
	if q.onFail == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	q.onFail(ctx, job, cause)
}

// Enqueue blocks while the buffer is full until a worker frees a slot or ctx
// ends.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.JobID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued job for processing", "job_id", job.JobID, "tenant_id", job.TenantID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "job_id", job.JobID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
