package documents

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/export"
	"github.com/joseph-ayodele/docintel/internal/repository"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
	cursorPrefix    = "idx:"
)

// Page selects a window of a job's items.
type Page struct {
	Cursor          string
	Limit           int
	IncludeReviews  bool
	NeedsReviewOnly bool
}

type ItemsPage struct {
	Items      []*entity.DocumentItem
	NextCursor string
}

func encodeCursor(next int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(next)))
}

func decodeCursor(c string) (int, error) {
	if c == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return 0, common.ValidationFailed("cursor is malformed")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(raw), cursorPrefix))
	if err != nil || !strings.HasPrefix(string(raw), cursorPrefix) || n < 0 {
		return 0, common.ValidationFailed("cursor is malformed")
	}
	return n, nil
}

// GetItems returns one page of items in item_index order. A job the tenant
// cannot see is NOT_FOUND, never an empty page. Review outcome fields are
// only returned with IncludeReviews.
func (s *Service) GetItems(ctx context.Context, tenantID, jobID uuid.UUID, page Page) (ItemsPage, error) {
	from, err := decodeCursor(page.Cursor)
	if err != nil {
		return ItemsPage{}, err
	}
	limit := page.Limit
	switch {
	case limit < 0:
		return ItemsPage{}, common.ValidationFailed("limit must not be negative")
	case limit == 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	items, err := s.items.List(ctx, tenantID, jobID, repository.ItemFilter{
		FromIndex:       from,
		Limit:           limit + 1,
		NeedsReviewOnly: page.NeedsReviewOnly,
	})
	if err != nil {
		return ItemsPage{}, err
	}

	var out ItemsPage
	if len(items) > limit {
		items = items[:limit]
		out.NextCursor = encodeCursor(items[limit-1].ItemIndex + 1)
	}
	if !page.IncludeReviews {
		for _, it := range items {
			it.ReviewedBy, it.ReviewedAt, it.ReviewNotes = nil, nil, nil
		}
	}
	out.Items = items
	return out, nil
}

// MarkItemReviewed records the review outcome of one item. It can be done
// once; a second call returns ALREADY_REVIEWED.
func (s *Service) MarkItemReviewed(ctx context.Context, tenantID, jobID uuid.UUID, itemIndex int, reviewer, notes string) (*entity.DocumentItem, error) {
	v := common.NewValidator().
		Field("reviewer", reviewer, common.Required, common.MaxLength(255)).
		Field("review_notes", notes, common.MaxLength(4000))
	if itemIndex < 0 {
		v.Field("item_index", itemIndex, common.Positive)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	item, err := s.items.MarkReviewed(ctx, tenantID, jobID, itemIndex, entity.ItemReview{
		Reviewer: strings.TrimSpace(reviewer),
		Notes:    notes,
		At:       s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ExportReviewQueue renders the job's items that need review as XLSX.
func (s *Service) ExportReviewQueue(ctx context.Context, tenantID, jobID uuid.UUID) ([]byte, error) {
	job, err := s.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.List(ctx, tenantID, jobID, repository.ItemFilter{NeedsReviewOnly: true})
	if err != nil {
		return nil, err
	}
	data, err := export.ReviewQueueXLSX(job, items)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, fmt.Sprintf("render review queue for job %s", jobID), err)
	}
	s.logger.Info("review queue exported", "job_id", jobID, "tenant_id", tenantID, "rows", len(items))
	return data, nil
}

// ListProfiles returns the profiles visible to the tenant.
func (s *Service) ListProfiles(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]*entity.DocumentProfile, error) {
	return s.profiles.List(ctx, tenantID, activeOnly)
}
