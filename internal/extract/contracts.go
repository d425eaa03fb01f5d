// Package extract defines the extraction capability the orchestration service
// consumes, and the OCR-backed implementation shipped with the module.
package extract

import (
	"context"

	"github.com/joseph-ayodele/docintel/internal/entity"
)

// Extractor turns a document into spans, in reading order. Implementations may
// block for a long time and may fail; callers treat them as a black box.
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]Span, error)
}

type Request struct {
	Document []byte
	MimeType string
	Filename string
	Profile  *entity.DocumentProfile
}

// Span is one extracted unit of text with its confidence signals.
type Span struct {
	Text                 string
	Page                 int
	BBox                 entity.BBox
	OCRConfidence        float64
	OCRProvider          string
	ItemType             string
	ExtractionConfidence *float64
	DetectedFlags        entity.Flags
	StructuredData       entity.StructuredData
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, req Request) ([]Span, error)

func (f ExtractorFunc) Extract(ctx context.Context, req Request) ([]Span, error) {
	return f(ctx, req)
}
