package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

// ItemFilter narrows a job's items. Items come back ordered by item_index.
type ItemFilter struct {
	// FromIndex is the smallest item_index returned.
	FromIndex       int
	Limit           int
	NeedsReviewOnly bool
}

type DocumentItemRepository interface {
	// List returns NOT_FOUND when the job is not visible to the tenant.
	List(ctx context.Context, tenantID, jobID uuid.UUID, filter ItemFilter) ([]*entity.DocumentItem, error)
	// MarkReviewed records the review outcome once; a second call returns ALREADY_REVIEWED.
	MarkReviewed(ctx context.Context, tenantID, jobID uuid.UUID, itemIndex int, review entity.ItemReview) (*entity.DocumentItem, error)
}

type documentItemRepository struct {
	scope  *TenantScope
	logger *slog.Logger
}

func NewDocumentItemRepository(scope *TenantScope, logger *slog.Logger) DocumentItemRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentItemRepository{scope: scope, logger: logger}
}

func (r *documentItemRepository) List(ctx context.Context, tenantID, jobID uuid.UUID, filter ItemFilter) ([]*entity.DocumentItem, error) {
	b := builder()
	pred := sql.And(
		sql.EQ("tenant_id", tenantID),
		sql.EQ("document_job_id", jobID),
		sql.GTE("item_index", filter.FromIndex),
	)
	if filter.NeedsReviewOnly {
		pred = sql.And(pred, sql.EQ("needs_review", true))
	}
	sel := b.Select(itemColumns...).
		From(b.Table(tableItems)).
		Where(pred).
		OrderBy("item_index")
	if filter.Limit > 0 {
		sel = sel.Limit(filter.Limit)
	}
	query, args := sel.Query()

	var items []*entity.DocumentItem
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		if _, err := getJob(ctx, q, tenantID, jobID); err != nil {
			return err
		}
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.DocumentItem, error) {
			return scanItem(row)
		})
		return err
	})
	if err != nil {
		if !common.IsCode(err, common.CodeNotFound) {
			r.logger.Error("failed to list document items", "job_id", jobID, "tenant_id", tenantID, "error", err)
		}
		return nil, err
	}
	return items, nil
}

func (r *documentItemRepository) MarkReviewed(ctx context.Context, tenantID, jobID uuid.UUID, itemIndex int, review entity.ItemReview) (*entity.DocumentItem, error) {
	at := review.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var notes *string
	if review.Notes != "" {
		notes = &review.Notes
	}

	itemPred := func() *sql.Predicate {
		return sql.And(
			sql.EQ("tenant_id", tenantID),
			sql.EQ("document_job_id", jobID),
			sql.EQ("item_index", itemIndex),
		)
	}
	update, updateArgs := builder().Update(tableItems).
		Set("is_reviewed", true).
		Set("reviewed_by", review.Reviewer).
		Set("reviewed_at", at).
		Set("review_notes", notes).
		Where(sql.And(itemPred(), sql.EQ("is_reviewed", false))).
		Query()
	b := builder()
	selectQuery, selectArgs := b.Select(itemColumns...).
		From(b.Table(tableItems)).
		Where(itemPred()).
		Query()

	var item *entity.DocumentItem
	err := r.scope.Run(ctx, tenantID, func(ctx context.Context, q Querier) error {
		tag, err := q.Exec(ctx, update, updateArgs...)
		if err != nil {
			return err
		}
		item, err = scanItem(q.QueryRow(ctx, selectQuery, selectArgs...))
		if err != nil {
			return notFound("document item", err)
		}
		if tag.RowsAffected() == 0 {
			return common.NewAppError(common.CodeAlreadyReviewed, "document item already reviewed", nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("document item reviewed", "job_id", jobID, "item_index", itemIndex, "reviewer", review.Reviewer)
	return item, nil
}

func insertItem(ctx context.Context, q Querier, item *entity.DocumentItem, now time.Time) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = now

	flags, err := jsonArg(item.Flags)
	if err != nil {
		return err
	}
	evidence, err := jsonArg(item.Evidence)
	if err != nil {
		return err
	}
	data := item.StructuredData
	if data == nil {
		data = entity.StructuredData{}
	}
	structured, err := jsonArg(data)
	if err != nil {
		return err
	}

	query, args := builder().Insert(tableItems).
		Columns(itemColumns...).
		Values(item.ID, item.TenantID, item.DocumentJobID, item.ItemIndex, item.ItemType, item.RawText,
			item.OCRConfidence, item.OCRProvider, item.ExtractionConfidence, item.OverallConfidence,
			flags, evidence, structured, item.NeedsReview, string(item.ReviewPriority),
			item.ReviewReason, item.IsReviewed, item.ReviewedBy, item.ReviewedAt, item.ReviewNotes, item.CreatedAt).
		Query()
	_, err = q.Exec(ctx, query, args...)
	return err
}

func scanItem(row pgx.Row) (*entity.DocumentItem, error) {
	var (
		item                        entity.DocumentItem
		priority                    string
		flags, evidence, structured []byte
	)
	err := row.Scan(&item.ID, &item.TenantID, &item.DocumentJobID, &item.ItemIndex, &item.ItemType, &item.RawText,
		&item.OCRConfidence, &item.OCRProvider, &item.ExtractionConfidence, &item.OverallConfidence,
		&flags, &evidence, &structured, &item.NeedsReview, &priority,
		&item.ReviewReason, &item.IsReviewed, &item.ReviewedBy, &item.ReviewedAt, &item.ReviewNotes, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.ReviewPriority = entity.ReviewPriority(priority)
	if err := errors.Join(
		json.Unmarshal(flags, &item.Flags),
		json.Unmarshal(evidence, &item.Evidence),
		json.Unmarshal(structured, &item.StructuredData),
	); err != nil {
		return nil, err
	}
	return &item, nil
}
