package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the dashboard backend.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Edit session metrics
	SessionOpensTotal       *prometheus.CounterVec
	SessionSavesTotal       *prometheus.CounterVec
	SessionDeletesTotal     *prometheus.CounterVec
	SessionStaleDropsTotal  *prometheus.CounterVec
	SessionSaveDuration     *prometheus.HistogramVec
	SessionsOpen            *prometheus.GaugeVec
	ValidationFailuresTotal *prometheus.CounterVec
	TransformFailuresTotal  *prometheus.CounterVec

	// Table metrics
	PageFetchesTotal  *prometheus.CounterVec
	PageFetchDuration *prometheus.HistogramVec

	// Backend metrics
	BackendRequestsTotal  *prometheus.CounterVec
	BackendRetriesTotal   *prometheus.CounterVec
	TokenRefreshesTotal   *prometheus.CounterVec

	// System metrics
	DefinitionReloadTotal *prometheus.CounterVec
	DefinitionsLoaded     prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsboard_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsboard_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Sessions
		SessionOpensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_session_opens_total",
			Help: "Total number of edit sessions opened.",
		}, []string{"entity"}),
		SessionSavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_session_saves_total",
			Help: "Total number of session save attempts.",
		}, []string{"entity", "status"}),
		SessionDeletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_session_deletes_total",
			Help: "Total number of session delete attempts.",
		}, []string{"entity", "status"}),
		SessionStaleDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_session_stale_drops_total",
			Help: "Total number of in-flight completions discarded because the session was superseded.",
		}, []string{"entity"}),
		SessionSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsboard_session_save_duration_seconds",
			Help:    "Session save duration in seconds, including the backend call.",
			Buckets: backendDurationBuckets,
		}, []string{"entity"}),
		SessionsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opsboard_sessions_open",
			Help: "Number of currently open edit sessions.",
		}, []string{"entity"}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_validation_failures_total",
			Help: "Total number of schema validation rejections.",
		}, []string{"entity"}),
		TransformFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_transform_failures_total",
			Help: "Total number of value transform failures.",
		}, []string{"entity", "field"}),

		// Tables
		PageFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_page_fetches_total",
			Help: "Total number of server-mode page fetches.",
		}, []string{"entity", "status"}),
		PageFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsboard_page_fetch_duration_seconds",
			Help:    "Server-mode page fetch duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"entity"}),

		// Backend
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_backend_requests_total",
			Help: "Total number of backend service requests.",
		}, []string{"service_id", "status"}),
		BackendRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_backend_retries_total",
			Help: "Total number of backend request retries.",
		}, []string{"service_id"}),
		TokenRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_token_refreshes_total",
			Help: "Total number of backend token refreshes triggered by 401 responses.",
		}, []string{"service_id"}),

		// System
		DefinitionReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsboard_definition_reload_total",
			Help: "Total entity definition reloads.",
		}, []string{"status"}),
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsboard_definitions_loaded",
			Help: "Number of loaded entity definitions.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Sessions
		m.SessionOpensTotal,
		m.SessionSavesTotal,
		m.SessionDeletesTotal,
		m.SessionStaleDropsTotal,
		m.SessionSaveDuration,
		m.SessionsOpen,
		m.ValidationFailuresTotal,
		m.TransformFailuresTotal,
		// Tables
		m.PageFetchesTotal,
		m.PageFetchDuration,
		// Backend
		m.BackendRequestsTotal,
		m.BackendRetriesTotal,
		m.TokenRefreshesTotal,
		// System
		m.DefinitionReloadTotal,
		m.DefinitionsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordSessionOpen records an edit session being opened.
func (m *Metrics) RecordSessionOpen(entity string) {
	m.SessionOpensTotal.WithLabelValues(entity).Inc()
	m.SessionsOpen.WithLabelValues(entity).Inc()
}

// RecordSessionClose records an edit session being closed or discarded.
func (m *Metrics) RecordSessionClose(entity string) {
	m.SessionsOpen.WithLabelValues(entity).Dec()
}

// RecordSessionSave records a save attempt.
func (m *Metrics) RecordSessionSave(entity, status string, duration time.Duration) {
	m.SessionSavesTotal.WithLabelValues(entity, status).Inc()
	m.SessionSaveDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordSessionDelete records a delete attempt.
func (m *Metrics) RecordSessionDelete(entity, status string) {
	m.SessionDeletesTotal.WithLabelValues(entity, status).Inc()
}

// RecordStaleDrop records a discarded in-flight completion.
func (m *Metrics) RecordStaleDrop(entity string) {
	m.SessionStaleDropsTotal.WithLabelValues(entity).Inc()
}

// RecordValidationFailure records a schema validation rejection.
func (m *Metrics) RecordValidationFailure(entity string) {
	m.ValidationFailuresTotal.WithLabelValues(entity).Inc()
}

// RecordTransformFailure records a value transform failure.
func (m *Metrics) RecordTransformFailure(entity, field string) {
	m.TransformFailuresTotal.WithLabelValues(entity, field).Inc()
}

// RecordPageFetch records a server-mode page fetch.
func (m *Metrics) RecordPageFetch(entity, status string, duration time.Duration) {
	m.PageFetchesTotal.WithLabelValues(entity, status).Inc()
	m.PageFetchDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordBackendRequest records a backend service request.
func (m *Metrics) RecordBackendRequest(serviceID string, status int) {
	m.BackendRequestsTotal.WithLabelValues(serviceID, strconv.Itoa(status)).Inc()
}

// RecordBackendRetry records a backend request retry.
func (m *Metrics) RecordBackendRetry(serviceID string) {
	m.BackendRetriesTotal.WithLabelValues(serviceID).Inc()
}

// RecordTokenRefresh records a token refresh forced by a 401.
func (m *Metrics) RecordTokenRefresh(serviceID string) {
	m.TokenRefreshesTotal.WithLabelValues(serviceID).Inc()
}

// RecordDefinitionReload records a definition reload.
func (m *Metrics) RecordDefinitionReload(status string) {
	m.DefinitionReloadTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
