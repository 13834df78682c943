package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_documents_total",
		Help: "Documents processed, by mode and outcome",
	}, []string{"mode", "outcome"})

	DocumentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsdesk_document_duration_seconds",
		Help:    "End-to-end processing time of one document",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"mode"})

	PagesRasterized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_pages_rasterized_total",
		Help: "Pages produced by the rasterizer",
	})

	RangeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_raster_range_failures_total",
		Help: "Rasterization page-range attempts that failed",
	}, []string{"reason"}) // timeout, exit, empty

	CropsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_crops_emitted_total",
		Help: "Article crops produced by the segmenter",
	})

	AdsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_ads_filtered_total",
		Help: "Units dropped as advertisements",
	}, []string{"stage"}) // segment, text

	ArticlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_articles_total",
		Help: "Analyzed article units, by outcome",
	}, []string{"outcome"}) // published, errored, dropped

	OracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsdesk_oracle_duration_seconds",
		Help:    "Latency of external oracle calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"oracle", "outcome"})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_uploads_total",
		Help: "Object storage uploads, by kind and outcome",
	}, []string{"kind", "outcome"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_notifications_total",
		Help: "Downstream deliveries, by outcome",
	}, []string{"outcome"}) // delivered, retried, dead_lettered, dropped

	TasksDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_tasks_dead_lettered_total",
		Help: "Queue tasks moved to the failed_jobs store after exhausting retries",
	}, []string{"topic"})

	TasksRequeued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_tasks_requeued_total",
		Help: "Queue tasks scheduled for redelivery after a failure",
	}, []string{"topic"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "route", "status"})
)

func ObserveOracle(oracle string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OracleDuration.WithLabelValues(oracle, outcome).Observe(time.Since(start).Seconds())
}

func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Instrument counts requests for a route pattern.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
	})
}
