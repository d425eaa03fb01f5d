// Package triage decides whether an extracted item needs human review. Every
// function is pure: identical inputs always produce identical outputs, so a
// stored decision can be reproduced later from the item alone.
package triage

import (
	"math"

	"github.com/joseph-ayodele/docintel/internal/entity"
)

const (
	// ocrWeight and extractionWeight blend the two signals when both exist.
	ocrWeight        = 0.3
	extractionWeight = 0.7

	// flagPenalty is the largest fraction a single detected flag removes.
	flagPenalty = 0.5

	// MaterialFlagConfidence is the detector confidence at which a detected
	// flag forces review on its own.
	MaterialFlagConfidence = 0.5
)

// Clamp01 bounds x to [0,1]; NaN becomes 0.
func Clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

// CalculateOverallConfidence combines OCR and extraction confidence, with
// extraction dominant when present, then discounts the result for every
// detected flag in proportion to that flag's own confidence.
func CalculateOverallConfidence(ocrConfidence float64, extractionConfidence *float64, flags entity.Flags) float64 {
	score := Clamp01(ocrConfidence)
	if extractionConfidence != nil {
		score = ocrWeight*score + extractionWeight*Clamp01(*extractionConfidence)
	}
	// sorted iteration keeps float rounding identical across runs
	for _, name := range flags.DetectedNames() {
		score *= 1 - flagPenalty*Clamp01(flags[name].Confidence)
	}
	return Clamp01(score)
}
