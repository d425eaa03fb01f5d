//go:build gosseract

// Package tesseract registers an in-process OCR engine backed by libtesseract.
// Import it for side effects in binaries built with -tags gosseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/docintel/internal/ocr"
)

func init() {
	ocr.SetDefaultEngine(NewEngine("eng"))
}

// Engine implements ocr.Engine with a gosseract client per page.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

func NewEngine(languages ...string) *Engine {
	return &Engine{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, image []byte, page int) ([]ocr.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}

	lines := make([]ocr.Line, 0, len(boxes))
	for _, b := range boxes {
		text := ocr.Normalize(strings.TrimSpace(b.Word))
		if text == "" {
			continue
		}
		lines = append(lines, ocr.Line{
			Text: text,
			Page: page,
			Box: ocr.Box{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return lines, nil
}
