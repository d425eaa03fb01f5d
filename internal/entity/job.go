package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/constants"
)

// DocumentJob represents one ingestion request for data transfer between layers.
type DocumentJob struct {
	ID                uuid.UUID           `json:"id"`
	TenantID          uuid.UUID           `json:"tenant_id"`
	CorrelationID     string              `json:"correlation_id"`
	IntegrationID     string              `json:"integration_id,omitempty"`
	DocumentProfileID uuid.UUID           `json:"document_profile_id"`
	OriginalFilename  string              `json:"original_filename"`
	MimeType          string              `json:"mime_type"`
	FileSizeBytes     int64               `json:"file_size_bytes"`
	StoragePath       string              `json:"storage_path"`
	Status            constants.JobStatus `json:"status"`
	FailureCode       *string             `json:"failure_code,omitempty"`
	FailureMessage    *string             `json:"failure_message,omitempty"`
	ItemCount         int                 `json:"item_count"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}

// Failure describes why a job ended in the failed state.
type Failure struct {
	Code    string
	Message string
}
