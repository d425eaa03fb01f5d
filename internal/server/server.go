// Package server is the HTTP facade over the documents service.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/internal/blob"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/services/documents"
)

// DocumentService is the part of documents.Service the facade calls.
type DocumentService interface {
	Ingest(ctx context.Context, req documents.IngestRequest) (*entity.DocumentJob, error)
	GetStatus(ctx context.Context, tenantID, jobID uuid.UUID) (*entity.DocumentJob, error)
	GetItems(ctx context.Context, tenantID, jobID uuid.UUID, page documents.Page) (documents.ItemsPage, error)
	MarkItemReviewed(ctx context.Context, tenantID, jobID uuid.UUID, itemIndex int, reviewer, notes string) (*entity.DocumentItem, error)
	ExportReviewQueue(ctx context.Context, tenantID, jobID uuid.UUID) ([]byte, error)
	ListProfiles(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]*entity.DocumentProfile, error)
}

// RequestObserver records per-route HTTP metrics.
type RequestObserver interface {
	ObserveRequest(route string, status int, d time.Duration)
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type Config struct {
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

type Deps struct {
	Documents DocumentService
	Blobs     blob.Store
	Auth      *Authenticator
	Metrics   RequestObserver
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	Ping           Pinger
}

type Server struct {
	cfg     Config
	docs    DocumentService
	blobs   blob.Store
	auth    *Authenticator
	limiter *TenantRateLimiter
	metrics RequestObserver
	promh   http.Handler
	ping    Pinger
	now     func() time.Time
	logger  *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &Server{
		cfg:     cfg,
		docs:    deps.Documents,
		blobs:   deps.Blobs,
		auth:    deps.Auth,
		limiter: NewTenantRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		metrics: deps.Metrics,
		promh:   deps.MetricsHandler,
		ping:    deps.Ping,
		now:     time.Now,
		logger:  logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.correlation)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.promh != nil {
		r.Handle("/metrics", s.promh)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(s.rateLimit)

		r.Post("/documents", s.handleIngest)
		r.Get("/profiles", s.handleListProfiles)
		r.Route("/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Get("/items", s.handleGetItems)
			r.Post("/items/{index}/review", s.handleReview)
			r.Get("/review-export", s.handleExport)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
