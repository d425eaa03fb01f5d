package triage

import (
	"github.com/joseph-ayodele/docintel/internal/entity"
)

// Input is the part of an extracted item the engine looks at.
type Input struct {
	ItemType             string
	OCRConfidence        float64
	ExtractionConfidence *float64
	Flags                entity.Flags
}

func (in Input) overall() float64 {
	return CalculateOverallConfidence(in.OCRConfidence, in.ExtractionConfidence, in.Flags)
}

// Decision is the stored outcome of triaging one item.
type Decision struct {
	Flags             entity.Flags
	OverallConfidence float64
	NeedsReview       bool
	Priority          entity.ReviewPriority
	Reason            string
}

// Evaluate triages in against profile. Flags the profile does not enable are
// dropped first; an item type outside the profile allow-list forces review.
func Evaluate(in Input, profile *entity.DocumentProfile) Decision {
	in.Flags = in.Flags.Only(profile.FlagsEnabled)
	thresholds := profile.ConfidenceThresholds

	overall := in.overall()
	needs := ShouldFlagForReview(in, thresholds)

	var unexpected string
	if !profile.AllowsItemType(in.ItemType) {
		unexpected = in.ItemType
		needs = true
	}

	d := Decision{
		Flags:             in.Flags,
		OverallConfidence: overall,
		NeedsReview:       needs,
		Priority:          entity.PriorityLow,
	}
	// priority only ranks the review queue; items outside it stay low
	if needs {
		d.Priority = DetermineReviewPriority(overall, in.Flags)
		d.Reason = GenerateReviewReason(Signals{
			OCR:            in.OCRConfidence,
			Overall:        overall,
			UnexpectedType: unexpected,
		}, in.Flags, thresholds)
	}
	return d
}
