// Package metrics exposes Prometheus collectors for jobs, triage and HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/entity"
)

const namespace = "docintel"

type Collector struct {
	jobsFinished       *prometheus.CounterVec
	itemsTriaged       *prometheus.CounterVec
	extractionLatency  *prometheus.HistogramVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
	gatherer           prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Collector{
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status, labelled by status and failure code",
		}, []string{"status", "code"}),
		itemsTriaged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_triaged_total",
			Help:      "Extracted items by review priority and whether they need review",
		}, []string{"priority", "needs_review"}),
		extractionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Latency of the extraction capability.",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of requests labelled by route and status",
		}, []string{"route", "status"}),
		httpRequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
}

func (c *Collector) JobFinished(status constants.JobStatus, code string) {
	c.jobsFinished.WithLabelValues(string(status), code).Inc()
}

func (c *Collector) ItemTriaged(priority entity.ReviewPriority, needsReview bool) {
	c.itemsTriaged.WithLabelValues(string(priority), strconv.FormatBool(needsReview)).Inc()
}

func (c *Collector) ObserveExtraction(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.extractionLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (c *Collector) ObserveRequest(route string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpRequestLatency.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
