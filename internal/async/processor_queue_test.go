package async

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newJob() Job {
	return Job{TenantID: uuid.New(), JobID: uuid.New(), CorrelationID: "corr"}
}

func TestProcessorQueueRunsJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[uuid.UUID]bool{}
	q := NewProcessorQueue(func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.JobID] = true
		mu.Unlock()
		return nil
	}, nil, WithWorkers(3), WithQueueSize(8))

	jobs := []Job{newJob(), newJob(), newJob(), newJob()}
	for _, j := range jobs {
		if err := q.Enqueue(context.Background(), j); err != nil {
			t.Fatalf("Enqueue() = %v", err)
		}
	}
	q.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	for _, j := range jobs {
		if !seen[j.JobID] {
			t.Errorf("job %s not processed", j.JobID)
		}
	}
}

func TestProcessorQueueAppliesTimeout(t *testing.T) {
	got := make(chan error, 1)
	q := NewProcessorQueue(func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	}, nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
	defer q.Shutdown(context.Background())

	if err := q.Enqueue(context.Background(), newJob()); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("handler ctx err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never timed out")
	}
}

func TestProcessorQueueBackpressure(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	q := NewProcessorQueue(func(context.Context, Job) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, nil, WithWorkers(1), WithQueueSize(1))

	if err := q.Enqueue(context.Background(), newJob()); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := q.Enqueue(context.Background(), newJob()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, newJob()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enqueue on full queue = %v, want deadline exceeded", err)
	}

	close(release)
	q.Shutdown(context.Background())

	if err := q.Enqueue(context.Background(), newJob()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue after shutdown = %v, want ErrQueueClosed", err)
	}
}

type busyLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (l *busyLocker) Acquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
	}, true, nil
}

func TestProcessorQueueSkipsLockedJobs(t *testing.T) {
	locked := newJob()
	free := newJob()
	locker := &busyLocker{held: map[string]bool{LockKey(locked): true}}

	var mu sync.Mutex
	var ran []uuid.UUID
	q := NewProcessorQueue(func(_ context.Context, job Job) error {
		mu.Lock()
		ran = append(ran, job.JobID)
		mu.Unlock()
		return nil
	}, nil, WithWorkers(1), WithLocker(locker))

	_ = q.Enqueue(context.Background(), locked)
	_ = q.Enqueue(context.Background(), free)
	q.Shutdown(context.Background())

	if len(ran) != 1 || ran[0] != free.JobID {
		t.Errorf("ran = %v, want only %s", ran, free.JobID)
	}
	if len(locker.released) != 1 || locker.released[0] != LockKey(free) {
		t.Errorf("released = %v", locker.released)
	}
}

type brokenLocker struct {
	mu    sync.Mutex
	calls int
}

func (l *brokenLocker) Acquire(context.Context, string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return nil, false, errors.New("redis: connection refused")
}

func TestProcessorQueueFailsJobWhenLockUnavailable(t *testing.T) {
	locker := &brokenLocker{}
	failed := make(chan error, 1)
	var failedJob Job
	handled := 0

	q := NewProcessorQueue(func(context.Context, Job) error {
		handled++
		return nil
	}, nil,
		WithWorkers(1),
		WithLocker(locker),
		WithLockRetry(3, time.Millisecond),
		WithFailureHandler(func(_ context.Context, job Job, cause error) {
			failedJob = job
			failed <- cause
		}),
	)

	job := newJob()
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue() = %v", err)
	}
	q.Shutdown(context.Background())

	select {
	case cause := <-failed:
		if cause == nil || !strings.Contains(cause.Error(), "connection refused") {
			t.Errorf("cause = %v", cause)
		}
	default:
		t.Fatal("job with an unavailable lock was neither processed nor failed")
	}
	if failedJob.JobID != job.JobID {
		t.Errorf("failed job = %s, want %s", failedJob.JobID, job.JobID)
	}
	if handled != 0 {
		t.Errorf("handler ran %d times without the lock", handled)
	}
	if locker.calls != 3 {
		t.Errorf("lock attempts = %d, want 3", locker.calls)
	}
}
