package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/internal/blob"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/services/documents"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []documents.IngestRequest
	err  error
}

func (f *fakeSubmitter) Ingest(_ context.Context, req documents.IngestRequest) (*entity.DocumentJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &entity.DocumentJob{ID: uuid.New(), TenantID: req.TenantID, DocumentProfileID: req.ProfileID}, nil
}

func (f *fakeSubmitter) requests() []documents.IngestRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]documents.IngestRequest(nil), f.reqs...)
}

func newInbox(t *testing.T, sub Submitter) (*Inbox, blob.Store, string) {
	t.Helper()
	store, err := blob.NewFSStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	return NewInbox(Config{Root: root, Debounce: 50 * time.Millisecond}, store, sub, nil), store, root
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestScanIngestsAndSortsFiles(t *testing.T) {
	sub := &fakeSubmitter{}
	inbox, store, root := newInbox(t, sub)
	tenant, profile := uuid.New(), uuid.New()

	good := filepath.Join(root, tenant.String(), profile.String(), "scan.png")
	misplaced := filepath.Join(root, "not-a-tenant", profile.String(), "scan.png")
	ignored := filepath.Join(root, tenant.String(), profile.String(), "notes.txt")
	writeFile(t, good, pngHeader)
	writeFile(t, misplaced, pngHeader)
	writeFile(t, ignored, []byte("hello"))

	stats, err := inbox.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() = %v", err)
	}
	if stats.Scanned != 3 || stats.Matched != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	reqs := sub.requests()
	if len(reqs) != 1 {
		t.Fatalf("submitted %d jobs, want 1", len(reqs))
	}
	req := reqs[0]
	if req.TenantID != tenant || req.ProfileID != profile || req.IntegrationID != IntegrationID {
		t.Fatalf("request = %+v", req)
	}
	if req.MimeType != "image/png" || req.OriginalFilename != "scan.png" || req.FileSizeBytes != int64(len(pngHeader)) {
		t.Fatalf("request = %+v", req)
	}
	if err := blob.CheckTenantPath(tenant, req.StoragePath); err != nil {
		t.Fatalf("storage path: %v", err)
	}
	got, err := store.Get(context.Background(), req.StoragePath)
	if err != nil || string(got) != string(pngHeader) {
		t.Fatalf("stored blob = %q, %v", got, err)
	}

	if exists(good) || !exists(filepath.Join(root, doneDir, tenant.String(), profile.String(), "scan.png")) {
		t.Error("ingested file not moved to .done")
	}
	if exists(misplaced) || !exists(filepath.Join(root, failedDir, "not-a-tenant", profile.String(), "scan.png")) {
		t.Error("rejected file not moved to .failed")
	}
	if !exists(ignored) {
		t.Error("unmatched file was touched")
	}

	// a second scan skips the handled files
	stats, err = inbox.Scan(context.Background())
	if err != nil || stats.Matched != 0 {
		t.Fatalf("rescan = %+v, %v", stats, err)
	}
}

func TestIngestFileRejections(t *testing.T) {
	tenant, profile := uuid.New(), uuid.New()
	tests := []struct {
		name string
		rel  string
		data []byte
	}{
		{"too shallow", filepath.Join(tenant.String(), "scan.png"), pngHeader},
		{"bad profile dir", filepath.Join(tenant.String(), "x", "scan.png"), pngHeader},
		{"empty file", filepath.Join(tenant.String(), profile.String(), "scan.png"), nil},
		{"unsupported content", filepath.Join(tenant.String(), profile.String(), "scan.txt"), []byte("plain words")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			inbox, _, root := newInbox(t, sub)
			path := filepath.Join(root, tt.rel)
			writeFile(t, path, tt.data)

			_, err := inbox.IngestFile(context.Background(), path)
			if !common.IsCode(err, common.CodeValidationFailed) {
				t.Fatalf("IngestFile() = %v, want VALIDATION_FAILED", err)
			}
			if len(sub.requests()) != 0 {
				t.Fatal("rejected file was submitted")
			}
			if !exists(filepath.Join(root, failedDir, tt.rel)) {
				t.Fatal("rejected file not moved to .failed")
			}
		})
	}
}

func TestIngestFileSubmitError(t *testing.T) {
	sub := &fakeSubmitter{err: common.NewAppError(common.CodeProfileInactive, "profile inactive", nil)}
	inbox, store, root := newInbox(t, sub)
	rel := filepath.Join(uuid.NewString(), uuid.NewString(), "scan.png")
	writeFile(t, filepath.Join(root, rel), pngHeader)

	_, err := inbox.IngestFile(context.Background(), filepath.Join(root, rel))
	if !common.IsCode(err, common.CodeProfileInactive) {
		t.Fatalf("IngestFile() = %v, want PROFILE_INACTIVE", err)
	}
	if !exists(filepath.Join(root, failedDir, rel)) {
		t.Fatal("file not moved to .failed")
	}

	reqs := sub.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(reqs))
	}
	if _, err := store.Get(context.Background(), reqs[0].StoragePath); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("rejected file left in blob store: %v", err)
	}
}

func TestWatchPicksUpNewFiles(t *testing.T) {
	sub := &fakeSubmitter{}
	inbox, _, root := newInbox(t, sub)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch() = %v", err)
		}
	}()

	// give the watcher time to register the root
	time.Sleep(100 * time.Millisecond)
	tenant, profile := uuid.New(), uuid.New()
	writeFile(t, filepath.Join(root, tenant.String(), profile.String(), "page.png"), pngHeader)

	deadline := time.Now().Add(5 * time.Second)
	for len(sub.requests()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watched file was never ingested")
		}
		time.Sleep(20 * time.Millisecond)
	}
	req := sub.requests()[0]
	if req.TenantID != tenant || req.ProfileID != profile {
		t.Fatalf("request = %+v", req)
	}
}
