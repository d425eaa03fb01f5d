// Package documents orchestrates document jobs: ingest, extraction, triage
// and the read side used by the API.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/async"
	"github.com/joseph-ayodele/docintel/internal/blob"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/extract"
	"github.com/joseph-ayodele/docintel/internal/repository"
	"github.com/joseph-ayodele/docintel/internal/triage"
)

// Metrics receives job and triage outcomes.
type Metrics interface {
	JobFinished(status constants.JobStatus, code string)
	ItemTriaged(priority entity.ReviewPriority, needsReview bool)
	ObserveExtraction(d time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) JobFinished(constants.JobStatus, string) {}
func (nopMetrics) ItemTriaged(entity.ReviewPriority, bool) {}
func (nopMetrics) ObserveExtraction(time.Duration, error)  {}

// Deps are the collaborators of the service. Queue and Metrics are optional;
// without a queue the caller drives ProcessExtraction itself.
type Deps struct {
	Profiles  repository.ProfileRepository
	Jobs      repository.DocumentJobRepository
	Items     repository.DocumentItemRepository
	Blobs     blob.Store
	Extractor extract.Extractor
	Queue     async.Queue
	Metrics   Metrics
}

// Service handles document job business logic.
type Service struct {
	profiles  repository.ProfileRepository
	jobs      repository.DocumentJobRepository
	items     repository.DocumentItemRepository
	blobs     blob.Store
	extractor extract.Extractor
	queue     async.Queue
	metrics   Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new documents service.
func NewService(deps Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Service{
		profiles:  deps.Profiles,
		jobs:      deps.Jobs,
		items:     deps.Items,
		blobs:     deps.Blobs,
		extractor: deps.Extractor,
		queue:     deps.Queue,
		metrics:   m,
		now:       time.Now,
		logger:    logger,
	}
}

// IngestRequest describes a document already written to the blob store.
type IngestRequest struct {
	TenantID         uuid.UUID
	ProfileID        uuid.UUID
	CorrelationID    string
	IntegrationID    string
	OriginalFilename string
	MimeType         string
	FileSizeBytes    int64
	StoragePath      string
}

// Ingest validates req and records a pending job. When a queue is configured
// the job is scheduled for extraction before Ingest returns.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*entity.DocumentJob, error) {
	req.CorrelationID = strings.TrimSpace(req.CorrelationID)
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	log := common.LoggerFromContext(ctx, s.logger).With("correlation_id", req.CorrelationID)

	v := common.NewValidator().
		Field("tenant_id", req.TenantID, common.Required).
		Field("profile_id", req.ProfileID, common.Required).
		Field("original_filename", req.OriginalFilename, common.Required, common.MaxLength(512)).
		Field("mime_type", req.MimeType, common.Required, common.MaxLength(255)).
		Field("file_size_bytes", req.FileSizeBytes, common.Positive).
		Field("storage_path", req.StoragePath, common.Required, common.MaxLength(1024)).
		Field("correlation_id", req.CorrelationID, common.MaxLength(255)).
		Field("integration_id", req.IntegrationID, common.MaxLength(255))
	if err := v.Err(); err != nil {
		log.Warn("ingest request rejected", "error", err)
		return nil, err
	}
	if err := blob.CheckTenantPath(req.TenantID, req.StoragePath); err != nil {
		return nil, common.ValidationFailed("storage_path %v", err)
	}

	profile, err := s.profiles.Get(ctx, req.TenantID, req.ProfileID)
	if err != nil {
		if common.IsCode(err, common.CodeNotFound) {
			return nil, common.NewAppError(common.CodeProfileNotFound,
				fmt.Sprintf("profile %s not found", req.ProfileID), err)
		}
		return nil, err
	}
	if !profile.IsActive {
		return nil, common.NewAppError(common.CodeProfileInactive,
			fmt.Sprintf("profile %s is inactive", profile.Label()), nil)
	}

	job := &entity.DocumentJob{
		TenantID:          req.TenantID,
		CorrelationID:     req.CorrelationID,
		IntegrationID:     strings.TrimSpace(req.IntegrationID),
		DocumentProfileID: profile.ID,
		OriginalFilename:  req.OriginalFilename,
		MimeType:          strings.ToLower(strings.TrimSpace(req.MimeType)),
		FileSizeBytes:     req.FileSizeBytes,
		StoragePath:       req.StoragePath,
		Status:            constants.JobStatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		// DB error already logged in repository layer
		return nil, err
	}
	log.Info("document job accepted", "job_id", job.ID, "profile", profile.Label(), "mime_type", job.MimeType, "size", job.FileSizeBytes)

	if s.queue == nil {
		return job, nil
	}
	err = s.queue.Enqueue(ctx, async.Job{
		TenantID:      job.TenantID,
		JobID:         job.ID,
		CorrelationID: job.CorrelationID,
		SubmittedAt:   s.now(),
	})
	if err != nil {
		appErr := common.NewAppError(common.CodeInternal, "could not schedule extraction", err)
		s.fail(ctx, job, appErr)
		return nil, appErr
	}
	return job, nil
}

// ProcessExtraction runs the extraction capability for a pending job, triages
// every span and stores the items together with the completed status. Any
// failure leaves the job failed with the cause retained.
func (s *Service) ProcessExtraction(ctx context.Context, tenantID, jobID uuid.UUID) (*entity.DocumentJob, error) {
	job, err := s.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With("job_id", job.ID, "tenant_id", tenantID, "correlation_id", job.CorrelationID)

	if job.Status != constants.JobStatusPending {
		return nil, common.NewAppError(common.CodeInvalidStateTransition,
			fmt.Sprintf("job %s is %s, not pending", job.ID, job.Status), nil)
	}
	if err := s.jobs.MarkExtracting(ctx, tenantID, jobID); err != nil {
		if !common.IsCode(err, common.CodeInvalidStateTransition) {
			s.fail(ctx, job, err)
		}
		return nil, err
	}
	job.Status = constants.JobStatusExtracting
	log.Info("extraction started")

	profile, err := s.profiles.Get(ctx, tenantID, job.DocumentProfileID)
	switch {
	case common.IsCode(err, common.CodeNotFound):
		return nil, s.fail(ctx, job, common.NewAppError(common.CodeProfileNotFound,
			fmt.Sprintf("profile %s not found", job.DocumentProfileID), err))
	case err != nil:
		return nil, s.fail(ctx, job, err)
	case !profile.IsActive:
		return nil, s.fail(ctx, job, common.NewAppError(common.CodeProfileInactive,
			fmt.Sprintf("profile %s was deactivated", profile.Label()), nil))
	}

	spans, err := s.runExtractor(ctx, job, profile)
	if err != nil {
		return nil, s.fail(ctx, job, err)
	}

	items := s.buildItems(spans, profile)
	if err := s.jobs.CompleteWithItems(ctx, tenantID, jobID, items); err != nil {
		return nil, s.fail(ctx, job, err)
	}
	s.metrics.JobFinished(constants.JobStatusCompleted, "")

	review := 0
	for _, it := range items {
		s.metrics.ItemTriaged(it.ReviewPriority, it.NeedsReview)
		if it.NeedsReview {
			review++
		}
	}
	log.Info("extraction completed", "items", len(items), "needs_review", review)

	done, err := s.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		log.Warn("reload completed job failed", "error", err)
		job.Status = constants.JobStatusCompleted
		job.ItemCount = len(items)
		return job, nil
	}
	return done, nil
}

func (s *Service) runExtractor(ctx context.Context, job *entity.DocumentJob, profile *entity.DocumentProfile) ([]extract.Span, error) {
	if err := blob.CheckTenantPath(job.TenantID, job.StoragePath); err != nil {
		return nil, common.NewAppError(common.CodeExtractionFailed, "document path rejected", err)
	}
	data, err := s.blobs.Get(ctx, job.StoragePath)
	if err != nil {
		return nil, common.NewAppError(common.CodeExtractionFailed, "read document", err)
	}

	start := time.Now()
	spans, err := s.extractor.Extract(ctx, extract.Request{
		Document: data,
		MimeType: job.MimeType,
		Filename: job.OriginalFilename,
		Profile:  profile,
	})
	s.metrics.ObserveExtraction(time.Since(start), err)
	if err != nil {
		return nil, common.NewAppError(common.CodeExtractionFailed, "extraction capability failed", err)
	}
	return spans, nil
}

// buildItems triages spans in capability order; item_index is the position.
func (s *Service) buildItems(spans []extract.Span, profile *entity.DocumentProfile) []*entity.DocumentItem {
	items := make([]*entity.DocumentItem, 0, len(spans))
	for i, sp := range spans {
		itemType := strings.TrimSpace(sp.ItemType)
		if itemType == "" {
			itemType = profile.DefaultItemType()
		}
		ocrConf := triage.Clamp01(sp.OCRConfidence)
		var extConf *float64
		if sp.ExtractionConfidence != nil {
			c := triage.Clamp01(*sp.ExtractionConfidence)
			extConf = &c
		}

		d := triage.Evaluate(triage.Input{
			ItemType:             itemType,
			OCRConfidence:        ocrConf,
			ExtractionConfidence: extConf,
			Flags:                sp.DetectedFlags,
		}, profile)

		data := sp.StructuredData
		if data == nil {
			data = entity.StructuredData{}
		}
		items = append(items, &entity.DocumentItem{
			ItemIndex:            i,
			ItemType:             itemType,
			RawText:              sp.Text,
			OCRConfidence:        ocrConf,
			OCRProvider:          sp.OCRProvider,
			ExtractionConfidence: extConf,
			OverallConfidence:    d.OverallConfidence,
			Flags:                d.Flags,
			Evidence:             entity.Evidence{Page: sp.Page, BBox: sp.BBox},
			StructuredData:       data,
			NeedsReview:          d.NeedsReview,
			ReviewPriority:       d.Priority,
			ReviewReason:         d.Reason,
		})
	}
	return items
}

// fail moves job to failed, keeping the code of cause, and returns cause as
// a coded error. The write survives cancellation of ctx.
func (s *Service) fail(ctx context.Context, job *entity.DocumentJob, cause error) error {
	code := common.CodeOf(cause)
	if code == "" {
		code = common.CodePersistenceFailed
		cause = common.NewAppError(code, "processing failed", cause)
	}

	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	failure := entity.Failure{Code: code, Message: failureMessage(cause)}
	if err := s.jobs.Fail(failCtx, job.TenantID, job.ID, failure); err != nil {
		s.logger.Error("could not record job failure", "job_id", job.ID, "code", code, "error", err)
		return errors.Join(cause, err)
	}
	job.Status = constants.JobStatusFailed
	job.FailureCode = &failure.Code
	job.FailureMessage = &failure.Message
	s.metrics.JobFinished(constants.JobStatusFailed, code)
	return cause
}

func failureMessage(err error) string {
	msg := err.Error()
	if len(msg) <= 1000 {
		return msg
	}
	msg = msg[:1000]
	// keep the stored text valid UTF-8
	for !utf8.ValidString(msg) {
		msg = msg[:len(msg)-1]
	}
	return msg
}

// FailJob records cause on a job that could not be processed. Jobs already
// in a terminal state are left as they are. An uncoded cause is stored as
// PERSISTENCE_FAILED.
func (s *Service) FailJob(ctx context.Context, tenantID, jobID uuid.UUID, cause error) error {
	job, err := s.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}
	if common.CodeOf(cause) == "" {
		cause = common.NewAppError(common.CodePersistenceFailed, "job could not be scheduled", cause)
	}
	// fail hands cause back unchanged once the failure is stored
	if err := s.fail(ctx, job, cause); err != cause {
		return err
	}
	return nil
}

// GetStatus returns the job as the tenant sees it.
func (s *Service) GetStatus(ctx context.Context, tenantID, jobID uuid.UUID) (*entity.DocumentJob, error) {
	return s.jobs.Get(ctx, tenantID, jobID)
}
