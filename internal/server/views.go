package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

type jobView struct {
	ID                uuid.UUID           `json:"job_id"`
	CorrelationID     string              `json:"correlation_id"`
	IntegrationID     string              `json:"integration_id,omitempty"`
	DocumentProfileID uuid.UUID           `json:"document_profile_id"`
	OriginalFilename  string              `json:"original_filename"`
	MimeType          string              `json:"mime_type"`
	FileSizeBytes     int64               `json:"file_size_bytes"`
	Status            constants.JobStatus `json:"status"`
	FailureCode       string              `json:"failure_code,omitempty"`
	FailureMessage    string              `json:"failure_message,omitempty"`
	ItemCount         int                 `json:"item_count"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}

func toJobView(j *entity.DocumentJob) jobView {
	v := jobView{
		ID:                j.ID,
		CorrelationID:     j.CorrelationID,
		IntegrationID:     j.IntegrationID,
		DocumentProfileID: j.DocumentProfileID,
		OriginalFilename:  j.OriginalFilename,
		MimeType:          j.MimeType,
		FileSizeBytes:     j.FileSizeBytes,
		Status:            j.Status,
		ItemCount:         j.ItemCount,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
		CompletedAt:       j.CompletedAt,
	}
	if j.FailureCode != nil {
		v.FailureCode = *j.FailureCode
		// internal causes stay in the logs and the database
		if exposesMessage[v.FailureCode] && j.FailureMessage != nil {
			v.FailureMessage = *j.FailureMessage
		}
	}
	return v
}

type acceptedView struct {
	JobID         uuid.UUID           `json:"job_id"`
	Status        constants.JobStatus `json:"status"`
	CorrelationID string              `json:"correlation_id"`
}

type itemsView struct {
	Items      []*entity.DocumentItem `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type profileView struct {
	ID                   uuid.UUID         `json:"id"`
	ProfileKey           string            `json:"profile_key"`
	ProfileVersion       int               `json:"profile_version"`
	ExpectedItemTypes    []string          `json:"expected_item_types"`
	FlagsEnabled         []string          `json:"flags_enabled"`
	ConfidenceThresholds entity.Thresholds `json:"confidence_thresholds"`
	IsActive             bool              `json:"is_active"`
}

func toProfileView(p *entity.DocumentProfile) profileView {
	return profileView{
		ID:                   p.ID,
		ProfileKey:           p.ProfileKey,
		ProfileVersion:       p.ProfileVersion,
		ExpectedItemTypes:    p.ExpectedItemTypes,
		FlagsEnabled:         p.FlagsEnabled,
		ConfidenceThresholds: p.ConfidenceThresholds,
		IsActive:             p.IsActive,
	}
}
