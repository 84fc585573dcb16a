package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	fanoutTotal     *prometheus.CounterVec
	mailTotal       *prometheus.CounterVec
	sweepTotal      *prometheus.CounterVec
}

// NewMetricsService registers the core Prometheus collectors.
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

	fanoutTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_fanout_total",
		Help: "Notification rows written per event type",
	}, []string{"event"})

	mailTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatch_total",
		Help: "Email dispatch outcomes",
	}, []string{"outcome"})

	sweepTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_sweep_total",
		Help: "Rows affected by background sweeps",
	}, []string{"sweep"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, fanoutTotal, mailTotal, sweepTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		fanoutTotal:     fanoutTotal,
		mailTotal:       mailTotal,
		sweepTotal:      sweepTotal,
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

// ObserveHTTPRequest records one request's method, route, status, and latency.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveFanout counts notification rows produced for one event type.
func (m *MetricsService) ObserveFanout(event string, recipients int) {
	if m == nil {
		return
	}
	m.fanoutTotal.WithLabelValues(event).Add(float64(recipients))
}

// ObserveMail counts one email dispatch outcome.
func (m *MetricsService) ObserveMail(outcome string) {
	if m == nil {
		return
	}
	m.mailTotal.WithLabelValues(outcome).Inc()
}

// ObserveSweep counts rows affected by a background sweep run.
func (m *MetricsService) ObserveSweep(sweep string, affected int64) {
	if m == nil {
		return
	}
	m.sweepTotal.WithLabelValues(sweep).Add(float64(affected))
}
