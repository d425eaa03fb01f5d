// Package async runs document extraction off the request path on a bounded
// worker pool.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job asks a worker to process one pending document job.
type Job struct {
	TenantID      uuid.UUID
	JobID         uuid.UUID
	CorrelationID string
	SubmittedAt   time.Time
}

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("async: queue is shutting down")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes one job. The context carries the per-job timeout.
type Handler func(ctx context.Context, job Job) error

// FailureHandler records that job could not be processed because of cause.
type FailureHandler func(ctx context.Context, job Job, cause error)

// Locker guards a job against concurrent processing by several workers or
// replicas. ok is false when another holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

// LockKey is the lock name used for a job.
func LockKey(job Job) string {
	return "docintel:job:" + job.TenantID.String() + ":" + job.JobID.String()
}
