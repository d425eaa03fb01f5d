package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docintel/constants"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir   string
	HeicConverter string // heif-convert | magick | sips; empty disables HEIC

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// Engine recognizes page images; nil uses DefaultEngine, then the tesseract CLI.
	Engine Engine
}

// Box is a rectangle in page pixel coordinates.
type Box struct {
	X, Y, Width, Height float64
}

// Line is one recognized line of text, in reading order.
type Line struct {
	Text       string
	Page       int
	Box        Box
	Confidence float64 // 0..1
}

type Result struct {
	Lines      []Line
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Provider   string
	Language   string
	Duration   time.Duration
	Warnings   []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	engine Engine
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	e.engine = cfg.Engine
	if e.engine == nil {
		e.engine = DefaultEngine()
	}
	if e.engine == nil {
		e.engine = &CLIEngine{cfg: &e.cfg, runner: e.runner}
	}
	return e
}

// Extract picks a strategy based on the document mime type.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (Result, error) {
	start := time.Now()
	format := constants.MapMimeToFormat(mimeType)
	e.logger.Debug("starting ocr extraction", "mime_type", mimeType, "format", format, "bytes", len(data), "engine", e.engine.Name())

	var (
		res Result
		err error
	)
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, data)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, data, mimeType)
	default:
		e.logger.Error("unsupported mime type", "mime_type", mimeType)
		return Result{}, fmt.Errorf("unsupported mime type: %q", mimeType)
	}
	res.Duration = time.Since(start)
	res.Language = e.cfg.TesseractLang
	if err != nil {
		return res, err
	}
	e.logger.Debug("ocr extraction finished", "method", res.Method, "lines", len(res.Lines), "pages", res.Pages, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte, mimeType string) (Result, error) {
	res := Result{SourceType: constants.IMAGE, Method: "image-ocr", Provider: e.engine.Name(), Pages: 1}
	if constants.IsHEICMime(mimeType) {
		png, warns, err := convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, data)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			e.logger.Error("heic conversion failed", "error", err)
			return res, err
		}
		data = png
	}

	lines, err := e.engine.Recognize(ctx, data, 1)
	if err != nil {
		return res, err
	}
	res.Lines = lines
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	lines, pages, err := pdfTextLayer(data)
	if err == nil && len(lines) > 0 {
		return Result{Lines: lines, Pages: pages, SourceType: constants.PDF, Method: "pdf-text", Provider: "pdf-text"}, nil
	}

	res := Result{SourceType: constants.PDF, Method: "pdf-ocr", Provider: e.engine.Name()}
	if err != nil {
		// unreadable text layer; fall back to rasterizing
		res.Warnings = append(res.Warnings, "pdf text layer: "+err.Error())
	}
	images, warns, err := e.rasterize(ctx, data)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pageLines, err := e.engine.Recognize(ctx, img, i+1)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		res.Lines = append(res.Lines, pageLines...)
	}
	res.Pages = len(images)
	if len(res.Lines) == 0 && len(res.Warnings) > 0 {
		return res, fmt.Errorf("no page could be recognized: %s", res.Warnings[len(res.Warnings)-1])
	}
	return res, nil
}
