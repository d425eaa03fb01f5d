// Package blob stores uploaded documents keyed by an opaque path.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/constants"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidPath = errors.New("invalid blob path")
)

// Store is the document store. The core only reads; uploads go through Put.
// Delete removes an upload nothing references; a missing object is not an
// error.
type Store interface {
	Get(ctx context.Context, p string) ([]byte, error)
	Put(ctx context.Context, p string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, p string) error
}

// NewPath returns a fresh storage path under the tenant prefix.
func NewPath(tenantID uuid.UUID, filename string, now time.Time) string {
	ext := constants.ExtFromFilename(filename)
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(TenantPrefix(tenantID), now.UTC().Format("2006/01"), name)
}

// TenantPrefix is the directory every object of a tenant lives under.
func TenantPrefix(tenantID uuid.UUID) string {
	return "tenants/" + tenantID.String()
}

// CheckTenantPath rejects paths that escape the tenant prefix.
func CheckTenantPath(tenantID uuid.UUID, p string) error {
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(clean, TenantPrefix(tenantID)+"/") {
		return fmt.Errorf("%w: %q is outside the tenant prefix", ErrInvalidPath, p)
	}
	return nil
}

func cleanPath(p string) (string, error) {
	if p == "" || strings.ContainsRune(p, 0) || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	clean := path.Clean("/" + p)[1:]
	if clean == "" || clean != strings.TrimPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return clean, nil
}
