package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the directory crawler.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	FoldersVisited   prometheus.Counter
	ImagesFoundTotal prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	CrawlsTotal      prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetpicker_requests_total",
			Help: "Total listing requests issued by the crawler, by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetpicker_request_duration_seconds",
			Help:    "HTTP latency of directory listing requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	folders := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assetpicker_folders_visited_total",
			Help: "Total number of folders visited across all crawls.",
		},
	)
	images := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assetpicker_images_found_total",
			Help: "Total number of unique images returned by crawls.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetpicker_errors_total",
			Help: "Total number of skipped folders by error type.",
		},
		[]string{"error_type"},
	)
	crawls := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assetpicker_crawls_total",
			Help: "Total number of completed crawls.",
		},
	)

	registry.MustRegister(requests, requestDuration, folders, images, errorsTotal, crawls)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		FoldersVisited:   folders,
		ImagesFoundTotal: images,
		ErrorsTotal:      errorsTotal,
		CrawlsTotal:      crawls,
	}
}

// IncRequest increments the requests counter for an outcome (ok, skipped).
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a listing request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncFolders increments the folders visited counter.
func (m *Metrics) IncFolders() {
	if m == nil {
		return
	}
	m.FoldersVisited.Inc()
}

// AddImages adds n to the images found counter.
func (m *Metrics) AddImages(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImagesFoundTotal.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncCrawls increments the completed crawls counter.
func (m *Metrics) IncCrawls() {
	if m == nil {
		return
	}
	m.CrawlsTotal.Inc()
}
