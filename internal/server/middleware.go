package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/docintel/internal/common"
)

const correlationHeader = "X-Correlation-ID"

// correlation carries the caller's correlation id, or a fresh one, on the
// context and the response.
func (s *Server) correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(correlationHeader))
		if id == "" || len(id) > 255 {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		ctx := common.WithCorrelationID(r.Context(), id)
		ctx = common.WithRequestID(ctx, middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument logs every request and feeds the route metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, status, elapsed)
		}
		common.LoggerFromContext(r.Context(), s.logger).Info("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"elapsed_ms", elapsed.Milliseconds(),
		)
	})
}

// TenantRateLimiter keeps one token bucket per tenant.
type TenantRateLimiter struct {
	tenants   map[uuid.UUID]*rate.Limiter
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
}

// NewTenantRateLimiter returns nil when rps is not positive, which disables
// limiting.
func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &TenantRateLimiter{tenants: make(map[uuid.UUID]*rate.Limiter), rateLimit: rate.Limit(rps), burstRate: burst}
}

func (l *TenantRateLimiter) GetLimiter(tenantID uuid.UUID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.tenants[tenantID]
	if !exists {
		limiter = rate.NewLimiter(l.rateLimit, l.burstRate)
		l.tenants[tenantID] = limiter
	}
	return limiter
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.GetLimiter(common.TenantIDFromContext(r.Context())).Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:         errorDetail{Code: "RATE_LIMITED", Message: "too many requests"},
				CorrelationID: common.CorrelationIDFromContext(r.Context()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
