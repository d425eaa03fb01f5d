package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCodeOf(t *testing.T) {
	base := NewAppError(CodeTenantContextNotSet, "no tenant", ErrTenantContext)
	wrapped := fmt.Errorf("outer: %w", base)

	if got := CodeOf(wrapped); got != CodeTenantContextNotSet {
		t.Fatalf("CodeOf() = %q, want %q", got, CodeTenantContextNotSet)
	}
	if !IsCode(wrapped, CodeTenantContextNotSet) {
		t.Fatal("IsCode should see through wrapping")
	}
	if !errors.Is(wrapped, ErrTenantContext) {
		t.Fatal("errors.Is should reach the sentinel cause")
	}
	if CodeOf(errors.New("plain")) != "" || IsCode(nil, CodeNotFound) {
		t.Fatal("plain and nil errors carry no code")
	}
}

func TestAsPersistence(t *testing.T) {
	if AsPersistence(nil, "x") != nil {
		t.Fatal("nil stays nil")
	}
	err := AsPersistence(errors.New("conn reset"), "insert item")
	if !IsCode(err, CodePersistenceFailed) {
		t.Fatalf("expected PERSISTENCE_FAILED, got %v", err)
	}
	coded := NewAppError(CodeNotFound, "job", ErrNotFound)
	if got := AsPersistence(coded, "load job"); got != coded {
		t.Fatalf("coded error should pass through, got %v", got)
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("file_size_bytes", int64(0), Positive).
		Field("mime_type", " ", Required).
		Field("tenant_id", uuid.Nil, Required).
		Field("profile_id", uuid.New(), Required, UUID).
		Field("threshold", 1.5, Range01).
		Field("nan", math.NaN(), Range01).
		Field("filename", "abcdef", MaxLength(3))

	if !v.HasErrors() {
		t.Fatal("expected errors")
	}
	if got := len(v.Errors()); got != 6 {
		t.Fatalf("expected 6 errors, got %d: %s", got, v.ErrorMessage())
	}
	err := v.Err()
	if !IsCode(err, CodeValidationFailed) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
	for _, field := range []string{"file_size_bytes", "mime_type", "tenant_id", "threshold", "nan", "filename"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("message %q missing field %s", err.Error(), field)
		}
	}

	if err := NewValidator().Field("id", "not-a-uuid", UUID).Err(); err == nil {
		t.Error("expected invalid uuid string to fail")
	}
	if err := NewValidator().Field("size", 10, Positive).Field("c", 0.0, Range01).Err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/docintel")
	t.Setenv("WORKERS", "8")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := LoadConfig()
	if cfg.Worker.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Worker.Workers)
	}
	if cfg.RateLimit.RPS != 20 {
		t.Errorf("RPS should fall back to default, got %v", cfg.RateLimit.RPS)
	}
	if !cfg.Blob.MinioUseSSL {
		t.Error("MINIO_USE_SSL not parsed")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if err := cfg.ValidateServer(); !IsCode(err, CodeConfig) {
		t.Fatalf("ValidateServer without JWT_SECRET = %v, want CONFIG_ERROR", err)
	}

	cfg.Blob.Backend = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown blob backend should fail")
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerTo(&buf, LogConfig{Level: "debug", Format: "json"})

	tenant := uuid.New()
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTenantID(ctx, tenant)
	ctx = WithCorrelationID(ctx, "corr-9")

	LoggerFromContext(ctx, base).Debug("hello")
	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"correlation_id":"corr-9"`, tenant.String(), `"msg":"hello"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %s", out, want)
		}
	}

	buf.Reset()
	quiet := NewLoggerTo(&buf, LogConfig{Level: "warn", Format: "text"})
	quiet.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	if TenantIDFromContext(ctx) != uuid.Nil || CorrelationIDFromContext(ctx) != "" || SubjectFromContext(ctx) != "" {
		t.Fatal("empty context should yield zero values")
	}
	ctx = WithSubject(ctx, "user-1")
	if SubjectFromContext(ctx) != "user-1" {
		t.Fatal("subject not stored")
	}

	c, cancel := WithTimeout(ctx, 0)
	defer cancel()
	if _, ok := c.Deadline(); ok {
		t.Fatal("zero timeout should not set a deadline")
	}
}
