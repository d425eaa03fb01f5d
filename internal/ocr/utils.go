package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`[\s\x{00a0}]+`)

// Normalize collapses runs of whitespace and trims the result.
func Normalize(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// convertHEICtoPNG converts HEIC/HEIF bytes to PNG using the chosen converter.
// converter: "heif-convert" | "magick" | "sips"
func convertHEICtoPNG(ctx context.Context, r Runner, converter string, data []byte) ([]byte, []string, error) {
	tmpDir, err := os.MkdirTemp("", "docintel-heic-*")
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "in.heic")
	out := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, nil, err
	}

	switch converter {
	case "heif-convert":
		if _, errb, err2 := r.Run(ctx, "heif-convert", in, out); err2 != nil {
			return nil, []string{string(errb)}, fmt.Errorf("heif-convert failed: %w", err2)
		}
	case "magick":
		if _, errb, err2 := r.Run(ctx, "magick", in, out); err2 != nil {
			return nil, []string{string(errb)}, fmt.Errorf("magick convert failed: %w", err2)
		}
	case "sips":
		if _, errb, err2 := r.Run(ctx, "sips", "-s", "format", "png", in, "--out", out); err2 != nil {
			return nil, []string{string(errb)}, fmt.Errorf("sips convert failed: %w", err2)
		}
	default:
		return nil, nil, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	return png, nil, nil
}
