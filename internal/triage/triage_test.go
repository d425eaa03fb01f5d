package triage

import (
	"math"
	"strings"
	"testing"

	"github.com/joseph-ayodele/docintel/internal/entity"
)

func ptr(f float64) *float64 { return &f }

var defaultThresholds = entity.Thresholds{"ocr": 0.85, "extraction": 0.75}

func TestCalculateOverallConfidence(t *testing.T) {
	tests := []struct {
		name       string
		ocr        float64
		extraction *float64
		flags      entity.Flags
		want       float64
	}{
		{"ocr only", 0.9, nil, nil, 0.9},
		{"extraction dominant", 0.5, ptr(1.0), nil, 0.85},
		{"flag discount", 1.0, nil, entity.Flags{"illegible": {Detected: true, Confidence: 1.0}}, 0.5},
		{"undetected flag ignored", 0.8, nil, entity.Flags{"illegible": {Detected: false, Confidence: 1.0}}, 0.8},
		{"clamped high input", 3.0, nil, nil, 1.0},
		{"clamped negative input", -1, ptr(-2), nil, 0},
		{"nan input", math.NaN(), nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateOverallConfidence(tt.ocr, tt.extraction, tt.flags)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateOverallConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateOverallConfidenceIsPure(t *testing.T) {
	flags := entity.Flags{
		"illegible":   {Detected: true, Confidence: 0.37},
		"crossed_out": {Detected: true, Confidence: 0.61},
		"handwritten": {Detected: true, Confidence: 0.13},
	}
	first := CalculateOverallConfidence(0.71, ptr(0.64), flags)
	for i := 0; i < 100; i++ {
		if got := CalculateOverallConfidence(0.71, ptr(0.64), flags); got != first {
			t.Fatalf("run %d: got %v, want %v", i, got, first)
		}
	}
	if first < 0 || first > 1 {
		t.Fatalf("output out of range: %v", first)
	}
}

func TestShouldFlagForReviewORSemantics(t *testing.T) {
	for _, extraction := range []*float64{nil, ptr(0), ptr(0.5), ptr(1)} {
		in := Input{OCRConfidence: 0.6, ExtractionConfidence: extraction}
		if !ShouldFlagForReview(in, defaultThresholds) {
			t.Errorf("ocr 0.6 with extraction %v should require review", extraction)
		}
	}

	if ShouldFlagForReview(Input{OCRConfidence: 0.95, ExtractionConfidence: ptr(0.9)}, defaultThresholds) {
		t.Error("confident item without flags should not require review")
	}
	if !ShouldFlagForReview(Input{OCRConfidence: 0.95, ExtractionConfidence: ptr(0.5)}, defaultThresholds) {
		t.Error("low extraction confidence alone should require review")
	}
	flagged := Input{
		OCRConfidence:        0.99,
		ExtractionConfidence: ptr(0.99),
		Flags:                entity.Flags{"crossed_out": {Detected: true, Confidence: 0.55}},
	}
	if !ShouldFlagForReview(flagged, entity.Thresholds{"ocr": 0.1, "extraction": 0.1}) {
		t.Error("material detected flag alone should require review")
	}
	weak := Input{
		OCRConfidence: 0.99,
		Flags:         entity.Flags{"crossed_out": {Detected: true, Confidence: 0.2}},
	}
	if ShouldFlagForReview(weak, entity.Thresholds{"ocr": 0.1, "extraction": 0.1}) {
		t.Error("immaterial flag should not force review")
	}
}

func TestDetermineReviewPriority(t *testing.T) {
	tests := []struct {
		name  string
		conf  float64
		flags entity.Flags
		want  entity.ReviewPriority
	}{
		{"boundary illegible", 0.4, entity.Flags{"illegible": {Detected: true, Confidence: 0.9}}, entity.PriorityHigh},
		{"low confidence", 0.3, nil, entity.PriorityHigh},
		{"severe flag at 0.8", 0.95, entity.Flags{"crossed_out": {Detected: true, Confidence: 0.8}}, entity.PriorityHigh},
		{"severe flag below 0.8", 0.95, entity.Flags{"crossed_out": {Detected: true, Confidence: 0.79}}, entity.PriorityMedium},
		{"other flag high confidence", 0.95, entity.Flags{"handwritten": {Detected: true, Confidence: 0.99}}, entity.PriorityMedium},
		{"medium confidence", 0.6, nil, entity.PriorityMedium},
		{"exactly 0.5", 0.5, nil, entity.PriorityMedium},
		{"exactly 0.75", 0.75, nil, entity.PriorityLow},
		{"confident", 0.9, entity.Flags{"illegible": {Detected: false, Confidence: 0.9}}, entity.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineReviewPriority(tt.conf, tt.flags); got != tt.want {
				t.Errorf("DetermineReviewPriority(%v) = %s, want %s", tt.conf, got, tt.want)
			}
		})
	}
}

func TestGenerateReviewReasonListsAllCauses(t *testing.T) {
	flags := entity.Flags{
		"crossed_out": {Detected: true, Confidence: 0.85},
		"illegible":   {Detected: false, Confidence: 0.99},
	}
	got := GenerateReviewReason(Signals{OCR: 0.6, Overall: 0.9}, flags, defaultThresholds)
	want := "Low OCR confidence (0.60); crossed_out detected (0.85)"
	if got != want {
		t.Fatalf("GenerateReviewReason() = %q, want %q", got, want)
	}

	all := GenerateReviewReason(Signals{OCR: 0.1, Overall: 0.2, UnexpectedType: "total"}, entity.Flags{
		"illegible":   {Detected: true, Confidence: 0.9},
		"crossed_out": {Detected: true, Confidence: 0.3},
	}, defaultThresholds)
	for _, part := range []string{"Low OCR confidence (0.10)", "Low extraction confidence (0.20)", "crossed_out detected (0.30)", "illegible detected (0.90)", "Unexpected item type (total)"} {
		if !strings.Contains(all, part) {
			t.Errorf("reason %q missing %q", all, part)
		}
	}
	if strings.Index(all, "crossed_out") > strings.Index(all, "illegible") {
		t.Errorf("flags not in name order: %q", all)
	}

	if got := GenerateReviewReason(Signals{OCR: 0.99, Overall: 0.99}, nil, defaultThresholds); got != "" {
		t.Errorf("expected empty reason, got %q", got)
	}
}

func TestEvaluate(t *testing.T) {
	profile := &entity.DocumentProfile{
		ExpectedItemTypes:    []string{"medication"},
		FlagsEnabled:         []string{"illegible"},
		ConfidenceThresholds: defaultThresholds,
	}

	t.Run("disabled flags dropped", func(t *testing.T) {
		d := Evaluate(Input{
			ItemType:      "medication",
			OCRConfidence: 0.95,
			Flags:         entity.Flags{"crossed_out": {Detected: true, Confidence: 0.99}},
		}, profile)
		if d.NeedsReview {
			t.Fatalf("disabled flag should not trigger review: %+v", d)
		}
		if len(d.Flags) != 0 {
			t.Fatalf("expected disabled flag dropped, got %v", d.Flags)
		}
		if d.Priority != entity.PriorityLow || d.Reason != "" {
			t.Fatalf("unexpected decision: %+v", d)
		}
	})

	t.Run("weak flag without review stays low", func(t *testing.T) {
		d := Evaluate(Input{
			ItemType:      "medication",
			OCRConfidence: 0.98,
			Flags:         entity.Flags{"illegible": {Detected: true, Confidence: 0.3}},
		}, profile)
		if d.NeedsReview {
			t.Fatalf("flag below material confidence should not trigger review: %+v", d)
		}
		if d.Priority != entity.PriorityLow || d.Reason != "" {
			t.Fatalf("expected low priority and no reason, got %+v", d)
		}
	})

	t.Run("unexpected item type", func(t *testing.T) {
		d := Evaluate(Input{ItemType: "signature", OCRConfidence: 0.99}, profile)
		if !d.NeedsReview || !strings.Contains(d.Reason, "Unexpected item type (signature)") {
			t.Fatalf("unexpected decision: %+v", d)
		}
	})

	t.Run("low ocr with illegible", func(t *testing.T) {
		d := Evaluate(Input{
			ItemType:      "medication",
			OCRConfidence: 0.45,
			Flags:         entity.Flags{"illegible": {Detected: true, Confidence: 0.9}},
		}, profile)
		if !d.NeedsReview || d.Priority != entity.PriorityHigh {
			t.Fatalf("unexpected decision: %+v", d)
		}
		if !strings.Contains(d.Reason, "Low OCR confidence (0.45)") || !strings.Contains(d.Reason, "illegible detected (0.90)") {
			t.Fatalf("reason incomplete: %q", d.Reason)
		}
	})
}
