package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/internal/blob"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/services/documents"
)

// ingestMetadata is the JSON body for a document already in the blob store.
type ingestMetadata struct {
	ProfileID        string `json:"profile_id"`
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
	FileSizeBytes    int64  `json:"file_size_bytes"`
	StoragePath      string `json:"storage_path"`
	CorrelationID    string `json:"correlation_id"`
	IntegrationID    string `json:"integration_id"`
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if err := common.NewValidator().Field(field, raw, common.Required, common.UUID).Err(); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

// handleIngest accepts either a multipart upload (field "file") or JSON
// metadata for a blob that is already stored.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := common.TenantIDFromContext(ctx)

	var (
		req      documents.IngestRequest
		uploaded bool
		err      error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		req, err = s.storeUpload(w, r)
		uploaded = err == nil
	case "application/json":
		req, err = decodeMetadata(r)
	default:
		err = common.ValidationFailed("content type must be multipart/form-data or application/json")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	req.TenantID = tenantID
	if req.CorrelationID == "" {
		req.CorrelationID = common.CorrelationIDFromContext(ctx)
	}
	job, err := s.docs.Ingest(ctx, req)
	if err != nil {
		if uploaded {
			s.discardUpload(ctx, req.StoragePath)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acceptedView{JobID: job.ID, Status: job.Status, CorrelationID: job.CorrelationID})
}

func decodeMetadata(r *http.Request) (documents.IngestRequest, error) {
	var body ingestMetadata
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return documents.IngestRequest{}, common.ValidationFailed("invalid JSON body: %v", err)
	}
	profileID, err := parseUUID("profile_id", body.ProfileID)
	if err != nil {
		return documents.IngestRequest{}, err
	}
	return documents.IngestRequest{
		ProfileID:        profileID,
		CorrelationID:    body.CorrelationID,
		IntegrationID:    body.IntegrationID,
		OriginalFilename: body.OriginalFilename,
		MimeType:         body.MimeType,
		FileSizeBytes:    body.FileSizeBytes,
		StoragePath:      body.StoragePath,
	}, nil
}

// storeUpload writes the uploaded file under the tenant prefix and returns
// the request describing it.
func (s *Server) storeUpload(w http.ResponseWriter, r *http.Request) (documents.IngestRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return documents.IngestRequest{}, common.ValidationFailed("file exceeds %d bytes", s.cfg.MaxUploadBytes)
		}
		return documents.IngestRequest{}, common.ValidationFailed("invalid multipart body: %v", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	profileID, err := parseUUID("profile_id", r.FormValue("profile_id"))
	if err != nil {
		return documents.IngestRequest{}, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return documents.IngestRequest{}, common.ValidationFailed("file is required")
	}
	defer file.Close()
	if header.Size <= 0 {
		return documents.IngestRequest{}, common.ValidationFailed("file_size_bytes must be positive")
	}

	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		mimeType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return documents.IngestRequest{}, fmt.Errorf("rewind upload: %w", err)
		}
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}

	tenantID := common.TenantIDFromContext(r.Context())
	path := blob.NewPath(tenantID, header.Filename, s.now())
	if err := s.blobs.Put(r.Context(), path, file, header.Size, mimeType); err != nil {
		return documents.IngestRequest{}, common.NewAppError(common.CodePersistenceFailed, "store upload", err)
	}
	s.logger.Debug("upload stored", "tenant_id", tenantID, "path", path, "size", header.Size)

	return documents.IngestRequest{
		ProfileID:        profileID,
		CorrelationID:    r.FormValue("correlation_id"),
		IntegrationID:    r.FormValue("integration_id"),
		OriginalFilename: header.Filename,
		MimeType:         mimeType,
		FileSizeBytes:    header.Size,
		StoragePath:      path,
	}, nil
}

// discardUpload removes a blob stored for a request that was not accepted.
func (s *Server) discardUpload(ctx context.Context, path string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), path); err != nil {
		s.logger.Warn("failed to remove rejected upload", "path", path, "error", err)
	}
}

func (s *Server) jobID(r *http.Request) (uuid.UUID, error) {
	return parseUUID("job id", chi.URLParam(r, "jobID"))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.jobID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.docs.GetStatus(r.Context(), common.TenantIDFromContext(r.Context()), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.jobID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	page := documents.Page{Cursor: q.Get("cursor")}
	if raw := q.Get("limit"); raw != "" {
		if page.Limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, common.ValidationFailed("limit must be an integer"))
			return
		}
	}
	for name, dst := range map[string]*bool{"include_reviews": &page.IncludeReviews, "needs_review": &page.NeedsReviewOnly} {
		if raw := q.Get(name); raw != "" {
			if *dst, err = strconv.ParseBool(raw); err != nil {
				writeError(w, r, common.ValidationFailed("%s must be a boolean", name))
				return
			}
		}
	}

	res, err := s.docs.GetItems(r.Context(), common.TenantIDFromContext(r.Context()), jobID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsView{Items: res.Items, NextCursor: res.NextCursor})
}

type reviewBody struct {
	Reviewer string `json:"reviewer"`
	Notes    string `json:"notes"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.jobID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, r, common.ValidationFailed("item index must be a non-negative integer"))
		return
	}
	var body reviewBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, common.ValidationFailed("invalid JSON body: %v", err))
		return
	}
	if body.Reviewer == "" {
		body.Reviewer = common.SubjectFromContext(r.Context())
	}

	item, err := s.docs.MarkItemReviewed(r.Context(), common.TenantIDFromContext(r.Context()), jobID, index, body.Reviewer, body.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.jobID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.docs.ExportReviewQueue(r.Context(), common.TenantIDFromContext(r.Context()), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="review-%s.xlsx"`, jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(data))
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, common.ValidationFailed("active must be a boolean"))
			return
		}
		activeOnly = v
	}
	plist, err := s.docs.ListProfiles(r.Context(), common.TenantIDFromContext(r.Context()), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]profileView, 0, len(plist))
	for _, p := range plist {
		out = append(out, toProfileView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}
