package triage

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docintel/internal/entity"
)

// Signals are the confidence values a reason is composed from.
type Signals struct {
	OCR     float64
	Overall float64
	// UnexpectedType is set when the item type is not on the profile allow-list.
	UnexpectedType string
}

// GenerateReviewReason lists every contributing cause in a stable order:
// low OCR, low overall confidence, each detected flag by name, unexpected type.
// Returns "" when nothing contributed.
func GenerateReviewReason(s Signals, flags entity.Flags, thresholds entity.Thresholds) string {
	var parts []string
	if ocr := Clamp01(s.OCR); ocr < thresholds.OCR() {
		parts = append(parts, fmt.Sprintf("Low OCR confidence (%.2f)", ocr))
	}
	if overall := Clamp01(s.Overall); overall < thresholds.Extraction() {
		parts = append(parts, fmt.Sprintf("Low extraction confidence (%.2f)", overall))
	}
	for _, name := range flags.DetectedNames() {
		parts = append(parts, fmt.Sprintf("%s detected (%.2f)", name, Clamp01(flags[name].Confidence)))
	}
	if s.UnexpectedType != "" {
		parts = append(parts, fmt.Sprintf("Unexpected item type (%s)", s.UnexpectedType))
	}
	return strings.Join(parts, "; ")
}
