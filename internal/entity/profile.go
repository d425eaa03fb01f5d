package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/constants"
)

// Thresholds maps a confidence signal name to its review cutoff in [0,1].
// Every profile carries at least "ocr" and "extraction".
type Thresholds map[string]float64

// OCR returns the OCR confidence cutoff.
func (t Thresholds) OCR() float64 { return t[constants.ThresholdOCR] }

// Extraction returns the overall/extraction confidence cutoff.
func (t Thresholds) Extraction() float64 { return t[constants.ThresholdExtraction] }

// DocumentProfile represents a versioned extraction template for data transfer between layers.
type DocumentProfile struct {
	ID                   uuid.UUID  `json:"id"`
	TenantID             uuid.UUID  `json:"tenant_id"`
	ProfileKey           string     `json:"profile_key"`
	ProfileVersion       int        `json:"profile_version"`
	ExpectedItemTypes    []string   `json:"expected_item_types"`
	FlagsEnabled         []string   `json:"flags_enabled"`
	ConfidenceThresholds Thresholds `json:"confidence_thresholds"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// AllowsItemType reports whether itemType is on the profile's allow-list.
// An empty list allows every type.
func (p *DocumentProfile) AllowsItemType(itemType string) bool {
	if len(p.ExpectedItemTypes) == 0 {
		return true
	}
	for _, t := range p.ExpectedItemTypes {
		if t == itemType {
			return true
		}
	}
	return false
}

// FlagEnabled reports whether the profile checks for the named flag.
func (p *DocumentProfile) FlagEnabled(name string) bool {
	for _, f := range p.FlagsEnabled {
		if f == name {
			return true
		}
	}
	return false
}

// DefaultItemType is the first expected type, or constants.DefaultItemType.
func (p *DocumentProfile) DefaultItemType() string {
	if len(p.ExpectedItemTypes) > 0 {
		return p.ExpectedItemTypes[0]
	}
	return constants.DefaultItemType
}

// Label renders key@version for logs.
func (p *DocumentProfile) Label() string {
	return p.ProfileKey + "@v" + itoa(p.ProfileVersion)
}
