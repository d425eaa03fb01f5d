//go:build gosseract

package main

// Registers the in-process tesseract engine as the OCR default.
import _ "github.com/joseph-ayodele/docintel/internal/ocr/tesseract"
