package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysisTotal       *prometheus.CounterVec
	analysisDuration    *prometheus.HistogramVec
	chatTurnsTotal      *prometheus.CounterVec
	uploadPages         *prometheus.HistogramVec
	rescoreDocsTotal    *prometheus.CounterVec
	comparisonRunsTotal *prometheus.CounterVec
	recoveryDispatched  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpra",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dpra",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dpra",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpra",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total document analysis runs by outcome.",
		},
		[]string{"service", "status"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dpra",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis duration in seconds.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpra",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total completed chat turns by scope.",
		},
		[]string{"service", "scope"},
	)
	uploadPages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dpra",
			Subsystem: "upload",
			Name:      "document_pages",
			Help:      "Distribution of page counts for accepted uploads.",
			Buckets:   []float64{10, 25, 50, 100, 200, 400, 800},
		},
		[]string{"service"},
	)
	rescoreDocsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpra",
			Subsystem: "compliance",
			Name:      "rescored_documents_total",
			Help:      "Total documents swept by weight recalculation, by outcome.",
		},
		[]string{"service", "outcome"},
	)
	comparisonRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpra",
			Subsystem: "comparison",
			Name:      "runs_total",
			Help:      "Total project comparison generations by outcome.",
		},
		[]string{"service", "status"},
	)
	recoveryDispatched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpra",
			Subsystem: "recovery",
			Name:      "dispatched_total",
			Help:      "Total interrupted documents re-dispatched at startup.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysisTotal,
		analysisDuration,
		chatTurnsTotal,
		uploadPages,
		rescoreDocsTotal,
		comparisonRunsTotal,
		recoveryDispatched,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		analysisTotal:       analysisTotal,
		analysisDuration:    analysisDuration,
		chatTurnsTotal:      chatTurnsTotal,
		uploadPages:         uploadPages,
		rescoreDocsTotal:    rescoreDocsTotal,
		comparisonRunsTotal: comparisonRunsTotal,
		recoveryDispatched:  recoveryDispatched,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/projects/"):
		return "/v1/projects/{project_id}"
	case strings.HasPrefix(path, "/v1/comparisons/"):
		return "/v1/comparisons/{comparison_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAnalysis(service, status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.analysisTotal.WithLabelValues(service, status).Inc()
	m.analysisDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordChatTurn(service, scope string) {
	m.chatTurnsTotal.WithLabelValues(service, scope).Inc()
}

func (m *HTTPServerMetrics) RecordUploadPages(service string, pages int) {
	if pages <= 0 {
		return
	}
	m.uploadPages.WithLabelValues(service).Observe(float64(pages))
}

func (m *HTTPServerMetrics) RecordRescoreSweep(service string, updated, failed int) {
	if updated > 0 {
		m.rescoreDocsTotal.WithLabelValues(service, "updated").Add(float64(updated))
	}
	if failed > 0 {
		m.rescoreDocsTotal.WithLabelValues(service, "failed").Add(float64(failed))
	}
}

func (m *HTTPServerMetrics) RecordComparisonRun(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.comparisonRunsTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordRecoveryDispatch(service string, count int) {
	if count <= 0 {
		return
	}
	m.recoveryDispatched.WithLabelValues(service).Add(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
