// Package ingest feeds documents dropped into a local inbox directory into
// the job pipeline. The layout is <root>/<tenant-id>/<profile-id>/<file>.
// Handled files move to <root>/.done or <root>/.failed, keeping their
// relative path.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/blob"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/services/documents"
)

// IntegrationID tags jobs created from the inbox.
const IntegrationID = "inbox"

const (
	doneDir   = ".done"
	failedDir = ".failed"
)

// Allowed extensions for discovery (lowercase, without '.').
var defaultExts = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"heic": {},
}

// Submitter creates jobs; documents.Service satisfies it.
type Submitter interface {
	Ingest(ctx context.Context, req documents.IngestRequest) (*entity.DocumentJob, error)
}

type Config struct {
	Root        string
	AllowedExts map[string]struct{} // nil -> default set
	Debounce    time.Duration       // quiet period before a written file is picked up
}

// Stats summarizes one Scan.
type Stats struct {
	Scanned   int
	Matched   int
	Succeeded int
	Failed    int
}

type Inbox struct {
	cfg    Config
	blobs  blob.Store
	docs   Submitter
	now    func() time.Time
	logger *slog.Logger
}

func NewInbox(cfg Config, blobs blob.Store, docs Submitter, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = defaultExts
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Inbox{cfg: cfg, blobs: blobs, docs: docs, now: time.Now, logger: logger}
}

// Scan ingests every file already sitting in the inbox.
func (in *Inbox) Scan(ctx context.Context) (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(in.cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if isHidden(path) && path != in.cfg.Root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !in.allowed(path) {
			return nil
		}
		stats.Matched++
		if _, err := in.IngestFile(ctx, path); err != nil {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		return ctx.Err()
	})
	if err != nil {
		return stats, fmt.Errorf("scan inbox: %w", err)
	}
	in.logger.Info("inbox scanned", "root", in.cfg.Root, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "failed", stats.Failed)
	return stats, nil
}

// IngestFile stores one inbox file and submits it as a job. The file is moved
// out of the inbox whatever the outcome, except when the context is done.
func (in *Inbox) IngestFile(ctx context.Context, path string) (*entity.DocumentJob, error) {
	log := in.logger.With("path", path)
	job, err := in.submit(ctx, path)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	dest := doneDir
	if err != nil {
		dest = failedDir
		log.Warn("inbox file rejected", "code", common.CodeOf(err), "error", err)
	} else {
		log.Info("inbox file ingested", "job_id", job.ID, "tenant_id", job.TenantID)
	}
	if merr := in.move(path, dest); merr != nil {
		log.Error("failed to move inbox file", "dest", dest, "error", merr)
		err = errors.Join(err, merr)
	}
	return job, err
}

func (in *Inbox) submit(ctx context.Context, path string) (*entity.DocumentJob, error) {
	tenantID, profileID, name, err := in.locate(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, common.ValidationFailed("%s is empty", name)
	}
	mimeType := detectMime(name, data)
	if constants.MapMimeToFormat(mimeType) == "" {
		return nil, common.ValidationFailed("unsupported content type %q", mimeType)
	}

	storagePath := blob.NewPath(tenantID, name, in.now())
	if err := in.blobs.Put(ctx, storagePath, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	job, err := in.docs.Ingest(ctx, documents.IngestRequest{
		TenantID:         tenantID,
		ProfileID:        profileID,
		IntegrationID:    IntegrationID,
		OriginalFilename: name,
		MimeType:         mimeType,
		FileSizeBytes:    int64(len(data)),
		StoragePath:      storagePath,
	})
	if err != nil {
		if derr := in.blobs.Delete(context.WithoutCancel(ctx), storagePath); derr != nil {
			in.logger.Warn("failed to remove rejected inbox blob", "path", storagePath, "error", derr)
		}
		return nil, err
	}
	return job, nil
}

// locate reads tenant and profile from the file's position under root.
func (in *Inbox) locate(path string) (tenantID, profileID uuid.UUID, name string, err error) {
	rel, err := filepath.Rel(in.cfg.Root, path)
	if err != nil {
		return uuid.Nil, uuid.Nil, "", err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return uuid.Nil, uuid.Nil, "", common.ValidationFailed("%s is not under <tenant-id>/<profile-id>/", rel)
	}
	if tenantID, err = uuid.Parse(parts[0]); err != nil {
		return uuid.Nil, uuid.Nil, "", common.ValidationFailed("tenant directory %q is not a uuid", parts[0])
	}
	if profileID, err = uuid.Parse(parts[1]); err != nil {
		return uuid.Nil, uuid.Nil, "", common.ValidationFailed("profile directory %q is not a uuid", parts[1])
	}
	return tenantID, profileID, parts[2], nil
}

func (in *Inbox) move(path, dest string) error {
	rel, err := filepath.Rel(in.cfg.Root, path)
	if err != nil {
		return err
	}
	target := filepath.Join(in.cfg.Root, dest, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Rename(path, target)
}

// Watch ingests files as they appear until ctx is done. Files present before
// the call are picked up by Scan, not Watch.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		in.logger.Error("failed to create fsnotify watcher", "error", err)
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			in.logger.Warn("close watcher", "error", err)
		}
	}()

	pending := map[string]time.Time{}
	if err := in.addTree(w, in.cfg.Root, pending); err != nil {
		return err
	}
	in.logger.Info("watching inbox", "root", in.cfg.Root)

	tick := time.NewTicker(in.cfg.Debounce / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if isHidden(e.Name) {
				continue
			}
			if e.Has(fsnotify.Create) {
				if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
					if err := in.addTree(w, e.Name, pending); err != nil {
						in.logger.Warn("failed to watch new directory", "path", e.Name, "error", err)
					}
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 && in.allowed(e.Name) {
				pending[e.Name] = in.now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("watcher error", "error", err)
		case <-tick.C:
			cutoff := in.now().Add(-in.cfg.Debounce)
			for path, seen := range pending {
				if seen.After(cutoff) {
					continue
				}
				delete(pending, path)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				_, _ = in.IngestFile(ctx, path)
			}
		}
	}
}

// addTree watches dir and its subdirectories. Files already inside a newly
// created directory are queued, since their events fired before the watch.
func (in *Inbox) addTree(w *fsnotify.Watcher, dir string, pending map[string]time.Time) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if isHidden(path) && path != in.cfg.Root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if dir != in.cfg.Root && in.allowed(path) {
			pending[path] = in.now()
		}
		return nil
	})
}

func (in *Inbox) allowed(path string) bool {
	_, ok := in.cfg.AllowedExts[constants.ExtFromFilename(path)]
	return ok
}

func detectMime(name string, data []byte) string {
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return mimeType
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
