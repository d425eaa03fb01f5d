//go:build gosseract

package tesseract

import (
	"testing"

	"github.com/joseph-ayodele/docintel/internal/ocr"
)

func TestRegistersDefaultEngine(t *testing.T) {
	engine := ocr.DefaultEngine()
	if engine == nil || engine.Name() != "tesseract" {
		t.Fatalf("DefaultEngine() = %v, want tesseract engine", engine)
	}
}
