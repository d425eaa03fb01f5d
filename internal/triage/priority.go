package triage

import (
	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

const (
	highPriorityBelow   = 0.5
	mediumPriorityBelow = 0.75
	severeFlagAtLeast   = 0.8
)

// ShouldFlagForReview is true when any single signal is below its cutoff:
// OCR confidence, overall confidence, or a materially confident detected flag.
func ShouldFlagForReview(item Input, thresholds entity.Thresholds) bool {
	if Clamp01(item.OCRConfidence) < thresholds.OCR() {
		return true
	}
	if item.overall() < thresholds.Extraction() {
		return true
	}
	for _, name := range item.Flags.DetectedNames() {
		if item.Flags[name].Confidence >= MaterialFlagConfidence {
			return true
		}
	}
	return false
}

// DetermineReviewPriority ranks an item for the review queue.
func DetermineReviewPriority(confidence float64, flags entity.Flags) entity.ReviewPriority {
	detected := flags.DetectedNames()
	if confidence < highPriorityBelow {
		return entity.PriorityHigh
	}
	for _, name := range detected {
		if _, severe := constants.SevereFlags[name]; severe && flags[name].Confidence >= severeFlagAtLeast {
			return entity.PriorityHigh
		}
	}
	if confidence < mediumPriorityBelow || len(detected) > 0 {
		return entity.PriorityMedium
	}
	return entity.PriorityLow
}
