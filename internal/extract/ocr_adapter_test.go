package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/ocr"
)

type recognizerFunc func(ctx context.Context, data []byte, mimeType string) (ocr.Result, error)

func (f recognizerFunc) Extract(ctx context.Context, data []byte, mimeType string) (ocr.Result, error) {
	return f(ctx, data, mimeType)
}

func TestOCRAdapterSpans(t *testing.T) {
	rec := recognizerFunc(func(_ context.Context, _ []byte, mimeType string) (ocr.Result, error) {
		if mimeType != "image/png" {
			t.Errorf("mime type = %q", mimeType)
		}
		return ocr.Result{
			Provider: "tesseract-cli",
			Lines: []ocr.Line{
				{Text: "Amoxicillin 500mg", Page: 1, Box: ocr.Box{X: 1, Y: 2, Width: 3, Height: 4}, Confidence: 0.95},
				{Text: "~~~#@ ;;", Page: 1, Confidence: 0.2},
			},
		}, nil
	})
	profile := &entity.DocumentProfile{
		ExpectedItemTypes: []string{"medication"},
		FlagsEnabled:      []string{constants.FlagIllegible},
	}

	spans, err := NewOCRAdapter(rec, nil).Extract(context.Background(), Request{MimeType: "image/png", Profile: profile})
	if err != nil {
		t.Fatalf("Extract() = %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	first := spans[0]
	if first.ItemType != "medication" || first.OCRProvider != "tesseract-cli" || first.ExtractionConfidence != nil {
		t.Errorf("unexpected span: %+v", first)
	}
	if first.BBox != (entity.BBox{X: 1, Y: 2, Width: 3, Height: 4}) {
		t.Errorf("bbox = %+v", first.BBox)
	}
	if first.DetectedFlags[constants.FlagIllegible].Detected {
		t.Error("clean line flagged illegible")
	}
	if first.StructuredData["text"].Text() != "Amoxicillin 500mg" {
		t.Errorf("structured text = %v", first.StructuredData["text"])
	}
	if !spans[1].DetectedFlags[constants.FlagIllegible].Detected {
		t.Error("noisy line not flagged illegible")
	}
}

func TestOCRAdapterSkipsDisabledFlags(t *testing.T) {
	rec := recognizerFunc(func(context.Context, []byte, string) (ocr.Result, error) {
		return ocr.Result{Lines: []ocr.Line{{Text: "@@@", Confidence: 0.1}}}, nil
	})
	spans, err := NewOCRAdapter(rec, nil).Extract(context.Background(), Request{Profile: &entity.DocumentProfile{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(spans[0].DetectedFlags) != 0 {
		t.Fatalf("flags should be empty when none enabled: %v", spans[0].DetectedFlags)
	}
	if spans[0].ItemType != constants.DefaultItemType {
		t.Fatalf("item type = %q", spans[0].ItemType)
	}
}

func TestOCRAdapterPropagatesFailure(t *testing.T) {
	boom := errors.New("tesseract missing")
	rec := recognizerFunc(func(context.Context, []byte, string) (ocr.Result, error) {
		return ocr.Result{}, boom
	})
	if _, err := NewOCRAdapter(rec, nil).Extract(context.Background(), Request{Profile: &entity.DocumentProfile{}}); !errors.Is(err, boom) {
		t.Fatalf("Extract() = %v, want %v", err, boom)
	}
}
