package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dslipak/pdf"
)

// pdfTextLayer reads embedded text. Each non-blank line becomes a Line with
// full confidence and no box; the text layer carries no glyph geometry here.
func pdfTextLayer(data []byte) (lines []Line, pages int, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			lines, pages, err = nil, 0, fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open pdf: %w", err)
	}
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return nil, pages, fmt.Errorf("page %d: %w", i, err)
		}
		for _, raw := range strings.Split(content, "\n") {
			text := Normalize(raw)
			if text == "" {
				continue
			}
			lines = append(lines, Line{Text: text, Page: i, Confidence: 1})
		}
	}
	return lines, pages, nil
}

// rasterize renders every page to PNG with pdftoppm and returns the images in
// page order.
func (e *Extractor) rasterize(ctx context.Context, data []byte) ([][]byte, []string, error) {
	tmpDir, err := os.MkdirTemp("", "docintel-pp-*")
	if err != nil {
		return nil, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, nil, err
	}
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return nil, []string{truncate(string(errb), 512)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	images := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, nil, err
		}
		images = append(images, b)
	}
	return images, nil, nil
}

// pageNumber extracts N from ".../page-N.png"; pdftoppm zero-pads N by page count.
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	n, _ := strconv.Atoi(base[strings.LastIndexByte(base, '-')+1:])
	return n
}
