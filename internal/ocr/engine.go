package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Engine recognizes the text lines of one page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, page int) ([]Line, error)
}

var defaultEngine Engine

// DefaultEngine returns the engine registered with SetDefaultEngine, or nil.
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine registers the engine new extractors use when their Config
// names none. Build with -tags gosseract to register the in-process engine.
func SetDefaultEngine(engine Engine) {
	defaultEngine = engine
}

// CLIEngine shells out to the tesseract binary and parses its TSV output.
type CLIEngine struct {
	cfg    *Config
	runner Runner
}

func (c *CLIEngine) Name() string { return "tesseract-cli" }

func (c *CLIEngine) Recognize(ctx context.Context, image []byte, page int) ([]Line, error) {
	tmpDir, err := os.MkdirTemp("", "docintel-ocr-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "page")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return nil, err
	}

	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv
	args := []string{path, "stdout", "-l", c.cfg.TesseractLang}
	if c.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(c.cfg.PSM))
	}
	if c.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(c.cfg.OEM))
	}
	if c.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := c.runner.Run(ctx, c.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return ParseTSV(out, page), nil
}
