package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classhall/assess-backend/internal/model"
)

// MetricsService encapsulates Prometheus instrumentation on a private
// registry, keeping the /metrics surface limited to what we register.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	attemptsStarted prometheus.Counter
	attemptsSealed  *prometheus.CounterVec
	gradedTotal     *prometheus.CounterVec
	sweepMoves      prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	attemptsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attempts_started_total",
		Help: "Total attempts opened by participants",
	})

	attemptsSealed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attempts_sealed_total",
		Help: "Total attempts sealed, by seal reason",
	}, []string{"reason"})

	gradedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_graded_total",
		Help: "Total grading runs, by resulting status",
	}, []string{"status"})

	sweepMoves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Total assessment lifecycle transitions made by the sweep",
	})

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "worker_queue_depth",
		Help: "Pending jobs per Redis worker queue",
	}, []string{"queue"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, attemptsStarted,
		attemptsSealed, gradedTotal, sweepMoves, queueDepth, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		attemptsStarted: attemptsStarted,
		attemptsSealed:  attemptsSealed,
		gradedTotal:     gradedTotal,
		sweepMoves:      sweepMoves,
		queueDepth:      queueDepth,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// AttemptStarted counts an opened attempt.
func (m *MetricsService) AttemptStarted() {
	if m == nil {
		return
	}
	m.attemptsStarted.Inc()
}

// AttemptSealed counts a seal by reason.
func (m *MetricsService) AttemptSealed(reason model.SealReason) {
	if m == nil {
		return
	}
	m.attemptsSealed.WithLabelValues(string(reason)).Inc()
}

// SubmissionGraded counts a grading run by resulting status.
func (m *MetricsService) SubmissionGraded(status model.SubmissionStatus) {
	if m == nil {
		return
	}
	m.gradedTotal.WithLabelValues(string(status)).Inc()
}

// SweepTransitions adds the transitions made by one sweep pass.
func (m *MetricsService) SweepTransitions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepMoves.Add(float64(n))
}

// SetQueueDepth records the pending length of a worker queue.
func (m *MetricsService) SetQueueDepth(queue string, depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
