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
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	visitsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visits_classified_total",
			Help: "Total number of visits classified, by category",
		},
		[]string{"category"},
	)

	careItemsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_items_created_total",
			Help: "Total number of care items created",
		},
		[]string{"care_type", "trigger_type"},
	)

	careItemsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "care_items_completed_total",
			Help: "Total number of care items completed or skipped",
		},
		[]string{"outcome"},
	)

	tasksGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_generated_total",
			Help: "Total number of tasks generated from service templates",
		},
		[]string{"trigger_service"},
	)

	serviceEventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emr_service_events_total",
			Help: "Total number of service events emitted by the EMR adapter",
		},
		[]string{"service"},
	)

	syncReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnects_total",
			Help: "Total number of realtime channel reconnect attempts",
		},
	)

	syncInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_invalidations_total",
			Help: "Total number of cache invalidations, by source",
		},
		[]string{"source"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath keeps metric label cardinality bounded
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordVisitClassified records a classified visit
func RecordVisitClassified(category string) {
	visitsClassified.WithLabelValues(category).Inc()
}

// RecordCareItemCreated records a care item creation
func RecordCareItemCreated(careType, triggerType string) {
	careItemsCreated.WithLabelValues(careType, triggerType).Inc()
}

// RecordCareItemClosed records a completed or skipped care item
func RecordCareItemClosed(outcome string) {
	careItemsCompleted.WithLabelValues(outcome).Inc()
}

// RecordTaskGenerated records a task generated from a service template
func RecordTaskGenerated(triggerService string) {
	tasksGenerated.WithLabelValues(triggerService).Inc()
}

// RecordServiceEvent records a service event from the EMR adapter
func RecordServiceEvent(service string) {
	serviceEventsEmitted.WithLabelValues(service).Inc()
}

// RecordSyncReconnect records a realtime reconnect attempt
func RecordSyncReconnect() {
	syncReconnects.Inc()
}

// RecordSyncInvalidation records a cache invalidation ("push" or "poll")
func RecordSyncInvalidation(source string) {
	syncInvalidations.WithLabelValues(source).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
