package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

type DocumentJobRepository interface {
	Create(ctx context.Context, job *entity.DocumentJob) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*entity.DocumentJob, error)
	// MarkExtracting moves a pending job to extracting.
	MarkExtracting(ctx context.Context, tenantID, id uuid.UUID) error
	// CompleteWithItems writes every item and the completed status in one
	// transaction; on any error nothing is written.
	CompleteWithItems(ctx context.Context, tenantID, id uuid.UUID, items []*entity.DocumentItem) error
	// Fail moves a non-terminal job to failed and records the cause.
	Fail(ctx context.Context, tenantID, id uuid.UUID, failure entity.Failure) error
}

type documentJobRepository struct {
	scope  *TenantScope
	logger *slog.Logger
}

func NewDocumentJobRepository(scope *TenantScope, logger *slog.Logger) DocumentJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentJobRepository{scope: scope, logger: logger}
}

func (r *documentJobRepository) Create(ctx context.Context, job *entity.DocumentJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}

	query, args := builder().Insert(tableJobs).
		Columns(jobColumns...).
		Values(job.ID, job.TenantID, job.CorrelationID, job.IntegrationID, job.DocumentProfileID,
			job.OriginalFilename, job.MimeType, job.FileSizeBytes, job.StoragePath, string(job.Status),
			job.FailureCode, job.FailureMessage, job.ItemCount, job.CreatedAt, job.UpdatedAt, job.CompletedAt).
		Query()

	err := r.scope.Run(ctx, job.TenantID, func(ctx context.Context, q Querier) error {
		_, err := q.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		r.logger.Error("document_job create failed", "tenant_id", job.TenantID, "error", err)
		return err
	}
	r.logger.Info("document_job created", "job_id", job.ID, "tenant_id", job.TenantID, "correlation_id", job.CorrelationID)
	return nil
}

func (r *documentJobRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*entity.DocumentJob, error) {
	var job *entity.DocumentJob
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		var err error
		job, err = getJob(ctx, q, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *documentJobRepository) MarkExtracting(ctx context.Context, tenantID, id uuid.UUID) error {
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		return transition(ctx, q, tenantID, id, constants.JobStatusExtracting, map[string]any{})
	})
	if err != nil {
		r.logger.Warn("document_job mark extracting failed", "job_id", id, "error", err)
		return err
	}
	return nil
}

func (r *documentJobRepository) CompleteWithItems(ctx context.Context, tenantID, id uuid.UUID, items []*entity.DocumentItem) error {
	now := time.Now().UTC()
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		for _, item := range items {
			item.TenantID = tenantID
			item.DocumentJobID = id
			if err := insertItem(ctx, q, item, now); err != nil {
				return fmt.Errorf("insert item %d: %w", item.ItemIndex, err)
			}
		}
		return transition(ctx, q, tenantID, id, constants.JobStatusCompleted, map[string]any{
			"item_count":   len(items),
			"completed_at": now,
		})
	})
	if err != nil {
		r.logger.Error("document_job complete failed", "job_id", id, "tenant_id", tenantID, "items", len(items), "error", err)
		return err
	}
	r.logger.Info("document_job completed", "job_id", id, "tenant_id", tenantID, "items", len(items))
	return nil
}

func (r *documentJobRepository) Fail(ctx context.Context, tenantID, id uuid.UUID, failure entity.Failure) error {
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		return transition(ctx, q, tenantID, id, constants.JobStatusFailed, map[string]any{
			"failure_code":    failure.Code,
			"failure_message": failure.Message,
			"completed_at":    time.Now().UTC(),
		})
	})
	if err != nil {
		r.logger.Error("document_job fail failed", "job_id", id, "tenant_id", tenantID, "error", err)
		return err
	}
	r.logger.Warn("document_job failed", "job_id", id, "tenant_id", tenantID, "code", failure.Code)
	return nil
}

func getJob(ctx context.Context, q Querier, tenantID, id uuid.UUID) (*entity.DocumentJob, error) {
	b := builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(tableJobs)).
		Where(sql.And(sql.EQ("tenant_id", tenantID), sql.EQ("id", id))).
		Query()
	job, err := scanJob(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound("document job", err)
	}
	return job, nil
}

// transition performs a guarded status update: the row only changes when its
// current status is a legal source for next.
func transition(ctx context.Context, q Querier, tenantID, id uuid.UUID, next constants.JobStatus, extra map[string]any) error {
	sources := constants.SourcesFor(next)
	from := make([]any, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	upd := builder().Update(tableJobs).
		Set("status", string(next)).
		Set("updated_at", time.Now().UTC())
	for _, col := range sortedKeys(extra) {
		upd = upd.Set(col, extra[col])
	}
	query, args := upd.
		Where(sql.And(
			sql.EQ("tenant_id", tenantID),
			sql.EQ("id", id),
			sql.In("status", from...),
		)).
		Query()

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// distinguish a missing job from one in the wrong state
	current, err := getJob(ctx, q, tenantID, id)
	if err != nil {
		return err
	}
	return common.NewAppError(common.CodeInvalidStateTransition,
		fmt.Sprintf("job %s cannot move from %s to %s", id, current.Status, next), nil)
}

func scanJob(row pgx.Row) (*entity.DocumentJob, error) {
	var (
		job    entity.DocumentJob
		status string
	)
	err := row.Scan(&job.ID, &job.TenantID, &job.CorrelationID, &job.IntegrationID, &job.DocumentProfileID,
		&job.OriginalFilename, &job.MimeType, &job.FileSizeBytes, &job.StoragePath, &status,
		&job.FailureCode, &job.FailureMessage, &job.ItemCount, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	return &job, nil
}
