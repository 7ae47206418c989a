package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budgetd_http_requests_total",
		Help: "HTTP requests served, by method, route pattern and status code.",
	}, []string{"method", "pattern", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "budgetd_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "pattern"})

	recordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budgetd_records_ingested_total",
		Help: "Budget records created through bulk upload, by record kind.",
	}, []string{"kind"})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one served request.
func ObserveRequest(method, pattern string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, pattern, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, pattern).Observe(elapsed.Seconds())
}

// CountIngested adds bulk-uploaded records to the ingest counter.
func CountIngested(kind string, n int) {
	if n > 0 {
		recordsIngested.WithLabelValues(kind).Add(float64(n))
	}
}
