package repository

import (
	"encoding/json"
	"errors"
	"sort"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/docintel/internal/common"
)

const (
	tableProfiles = "document_profiles"
	tableJobs     = "document_jobs"
	tableItems    = "document_items"
)

var profileColumns = []string{
	"id", "tenant_id", "profile_key", "profile_version", "expected_item_types",
	"flags_enabled", "confidence_thresholds", "is_active", "created_at", "updated_at",
}

var jobColumns = []string{
	"id", "tenant_id", "correlation_id", "integration_id", "document_profile_id",
	"original_filename", "mime_type", "file_size_bytes", "storage_path", "status",
	"failure_code", "failure_message", "item_count", "created_at", "updated_at", "completed_at",
}

var itemColumns = []string{
	"id", "tenant_id", "document_job_id", "item_index", "item_type", "raw_text",
	"ocr_confidence", "ocr_provider", "extraction_confidence", "overall_confidence",
	"flags", "evidence", "structured_data", "needs_review", "review_priority",
	"review_reason", "is_reviewed", "reviewed_by", "reviewed_at", "review_notes", "created_at",
}

func builder() *sql.DialectBuilder {
	return sql.Dialect(dialect.Postgres)
}

// jsonArg encodes v for a jsonb parameter.
func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewAppError(common.CodeNotFound, what+" not found", common.ErrNotFound)
	}
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
