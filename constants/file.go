package constants

import (
	"mime"
	"path/filepath"
	"strings"
)

// Document formats understood by the OCR extractor.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

var mimeFormats = map[string]string{
	"application/pdf": PDF,
	"image/png":       IMAGE,
	"image/jpeg":      IMAGE,
	"image/tiff":      IMAGE,
	"image/bmp":       IMAGE,
	"image/gif":       IMAGE,
	"image/webp":      IMAGE,
	"image/heic":      IMAGE,
	"image/heif":      IMAGE,
}

// MapMimeToFormat returns PDF, IMAGE or "" when the mime type is not supported.
func MapMimeToFormat(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mimeFormats[mt]
}

// IsHEICMime reports whether the image needs converting before OCR.
func IsHEICMime(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return mt == "image/heic" || mt == "image/heif"
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtFromFilename returns the normalized extension of name.
func ExtFromFilename(name string) string {
	return NormalizeExt(filepath.Ext(name))
}
