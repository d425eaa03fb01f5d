package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ReviewPriority orders items in the human review queue.
type ReviewPriority string

const (
	PriorityLow    ReviewPriority = "low"
	PriorityMedium ReviewPriority = "medium"
	PriorityHigh   ReviewPriority = "high"
)

// Flag is the output of one anomaly detector for one item.
type Flag struct {
	Detected   bool    `json:"detected"`
	Confidence float64 `json:"confidence"`
}

// Flags maps flag name to detector output.
type Flags map[string]Flag

// DetectedNames returns the names of detected flags in sorted order.
func (f Flags) DetectedNames() []string {
	names := make([]string, 0, len(f))
	for name, fl := range f {
		if fl.Detected {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Names returns every flag name in sorted order.
func (f Flags) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Only keeps the flags whose name is in enabled.
func (f Flags) Only(enabled []string) Flags {
	out := make(Flags, len(f))
	for _, name := range enabled {
		if fl, ok := f[name]; ok {
			out[name] = fl
		}
	}
	return out
}

// BBox is a rectangle in page coordinates.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Evidence pinpoints where an item was read from.
type Evidence struct {
	Page int  `json:"page"`
	BBox BBox `json:"bbox"`
}

// DocumentItem represents one extracted unit within a job.
type DocumentItem struct {
	ID                   uuid.UUID      `json:"id"`
	TenantID             uuid.UUID      `json:"tenant_id"`
	DocumentJobID        uuid.UUID      `json:"document_job_id"`
	ItemIndex            int            `json:"item_index"`
	ItemType             string         `json:"item_type"`
	RawText              string         `json:"raw_text"`
	OCRConfidence        float64        `json:"ocr_confidence"`
	OCRProvider          string         `json:"ocr_provider"`
	ExtractionConfidence *float64       `json:"extraction_confidence,omitempty"`
	OverallConfidence    float64        `json:"overall_confidence"`
	Flags                Flags          `json:"flags"`
	Evidence             Evidence       `json:"evidence"`
	StructuredData       StructuredData `json:"structured_data"`
	NeedsReview          bool           `json:"needs_review"`
	ReviewPriority       ReviewPriority `json:"review_priority"`
	ReviewReason         string         `json:"review_reason,omitempty"`
	IsReviewed           bool           `json:"is_reviewed"`
	ReviewedBy           *string        `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time     `json:"reviewed_at,omitempty"`
	ReviewNotes          *string        `json:"review_notes,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// ItemReview is the outcome written once by the review workflow.
type ItemReview struct {
	Reviewer string
	Notes    string
	At       time.Time
}
