package main

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/extract"
	"github.com/joseph-ayodele/docintel/internal/ocr"
	"github.com/joseph-ayodele/docintel/internal/profiles"
	"github.com/joseph-ayodele/docintel/internal/triage"
)

// runocr extracts a local document and prints the triage outcome of every
// span, without touching the database. An optional catalogue supplies the
// profile; its first entry is used.
func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(common.LogConfig{Level: cfg.Log.Level, Format: "json"})
	slog.SetDefault(logger)

	if len(os.Args) < 2 || len(os.Args) > 3 {
		logger.Error("usage", "cmd", "runocr <document> [profiles.yaml]")
		os.Exit(2)
	}
	path := os.Args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read document", "path", path, "error", err)
		os.Exit(1)
	}

	profile := &entity.DocumentProfile{
		ProfileKey:     "adhoc",
		ProfileVersion: 1,
		ConfidenceThresholds: entity.Thresholds{
			constants.ThresholdOCR:        0.8,
			constants.ThresholdExtraction: 0.7,
		},
		IsActive: true,
	}
	if len(os.Args) == 3 {
		catalog, err := profiles.LoadFile(os.Args[2])
		if err != nil {
			logger.Error("load profiles", "path", os.Args[2], "error", err)
			os.Exit(1)
		}
		if len(catalog.Profiles) == 0 {
			logger.Error("load profiles", "path", os.Args[2], "error", "catalogue has no profiles")
			os.Exit(1)
		}
		if profile, err = catalog.Profiles[0].Entity(); err != nil {
			logger.Error("profile", "error", err)
			os.Exit(1)
		}
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftoppm:      cfg.OCR.PdftoppmBin,
		Tesseract:     cfg.OCR.TesseractBin,
		TesseractLang: cfg.OCR.Lang,
		DPI:           cfg.OCR.DPI,
		TessdataDir:   cfg.OCR.TessdataDir,
		HeicConverter: cfg.OCR.HeicConverter,
	}, logger)
	adapter := extract.NewOCRAdapter(ocrx, logger)

	start := time.Now()
	spans, err := adapter.Extract(ctx, extract.Request{
		Document: data,
		MimeType: mimeType,
		Filename: filepath.Base(path),
		Profile:  profile,
	})
	dur := time.Since(start)
	if err != nil {
		logger.Error("extraction failed", "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	review := 0
	for i, sp := range spans {
		itemType := sp.ItemType
		if itemType == "" {
			itemType = profile.DefaultItemType()
		}
		d := triage.Evaluate(triage.Input{
			ItemType:             itemType,
			OCRConfidence:        triage.Clamp01(sp.OCRConfidence),
			ExtractionConfidence: sp.ExtractionConfidence,
			Flags:                sp.DetectedFlags,
		}, profile)
		if d.NeedsReview {
			review++
		}
		logger.Info("item",
			"index", i,
			"page", sp.Page,
			"type", itemType,
			"text", sp.Text,
			"overall", d.OverallConfidence,
			"needs_review", d.NeedsReview,
			"priority", d.Priority,
			"reason", d.Reason,
		)
	}
	logger.Info("extraction OK",
		"profile", profile.Label(),
		"mime", mimeType,
		"items", len(spans),
		"needs_review", review,
		"duration_ms", dur.Milliseconds(),
	)
}
