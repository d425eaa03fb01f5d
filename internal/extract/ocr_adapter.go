package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/ocr"
)

// LineRecognizer is the part of *ocr.Extractor the adapter needs.
type LineRecognizer interface {
	Extract(ctx context.Context, data []byte, mimeType string) (ocr.Result, error)
}

// IllegibleCutoff is the heuristic score at which a line is reported illegible.
const IllegibleCutoff = 0.5

// OCRAdapter turns every recognized line into one span. It does no field
// extraction, so ExtractionConfidence stays nil.
type OCRAdapter struct {
	r      LineRecognizer
	logger *slog.Logger
}

func NewOCRAdapter(r LineRecognizer, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{r: r, logger: logger}
}

func (a *OCRAdapter) Extract(ctx context.Context, req Request) ([]Span, error) {
	if req.Profile == nil {
		return nil, fmt.Errorf("extract: profile is required")
	}
	res, err := a.r.Extract(ctx, req.Document, req.MimeType)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		a.logger.Warn("ocr warning", "filename", req.Filename, "method", res.Method, "warning", w)
	}

	checkIllegible := req.Profile.FlagEnabled(constants.FlagIllegible)
	itemType := req.Profile.DefaultItemType()

	spans := make([]Span, 0, len(res.Lines))
	for _, line := range res.Lines {
		flags := entity.Flags{}
		if checkIllegible {
			score := ocr.IllegibleScore(line)
			flags[constants.FlagIllegible] = entity.Flag{Detected: score >= IllegibleCutoff, Confidence: score}
		}
		spans = append(spans, Span{
			Text: line.Text,
			Page: line.Page,
			BBox: entity.BBox{
				X:      line.Box.X,
				Y:      line.Box.Y,
				Width:  line.Box.Width,
				Height: line.Box.Height,
			},
			OCRConfidence: line.Confidence,
			OCRProvider:   res.Provider,
			ItemType:      itemType,
			DetectedFlags: flags,
			StructuredData: entity.StructuredData{
				"text": entity.String(line.Text),
				"page": entity.Number(float64(line.Page)),
			},
		})
	}
	a.logger.Debug("ocr spans extracted", "filename", req.Filename, "spans", len(spans), "method", res.Method, "duration_ms", res.Duration.Milliseconds())
	return spans, nil
}
