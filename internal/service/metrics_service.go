package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/referral-bot/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the bot and the ops API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	updatesTotal    *prometheus.CounterVec
	flowsTotal      *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
	sheetDuration   *prometheus.HistogramVec
	sheetErrors     *prometheus.CounterVec

	updateCount    uint64
	sheetCallCount uint64
	sheetErrCount  uint64
	sheetDurTotal  uint64
	deliveredCount uint64
	failedCount    uint64
}

// NewMetricsService registers core Prometheus collectors.
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

	updatesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Chat updates handled by the conversation engine",
	}, []string{"kind"})

	flowsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_flows_completed_total",
		Help: "Conversation flows that reached a terminal state",
	}, []string{"flow", "outcome"})

	deliveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_deliveries_total",
		Help: "Broadcast deliveries by result",
	}, []string{"result"})

	sheetDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sheet_call_duration_seconds",
		Help:    "Latency of spreadsheet round trips",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
	}, []string{"op"})

	sheetErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheet_call_errors_total",
		Help: "Failed spreadsheet round trips",
	}, []string{"op"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, updatesTotal, flowsTotal, deliveriesTotal, sheetDuration, sheetErrors, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		updatesTotal:    updatesTotal,
		flowsTotal:      flowsTotal,
		deliveriesTotal: deliveriesTotal,
		sheetDuration:   sheetDuration,
		sheetErrors:     sheetErrors,
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

// ObserveUpdate counts an inbound chat update by kind (message, command, callback).
func (m *MetricsService) ObserveUpdate(kind string) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(kind).Inc()
	atomic.AddUint64(&m.updateCount, 1)
}

// ObserveFlow counts a flow that ended, with its outcome.
func (m *MetricsService) ObserveFlow(flow, outcome string) {
	if m == nil {
		return
	}
	m.flowsTotal.WithLabelValues(flow, outcome).Inc()
}

// ObserveDelivery counts one broadcast delivery attempt.
func (m *MetricsService) ObserveDelivery(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.deliveriesTotal.WithLabelValues("success").Inc()
		atomic.AddUint64(&m.deliveredCount, 1)
		return
	}
	m.deliveriesTotal.WithLabelValues("failure").Inc()
	atomic.AddUint64(&m.failedCount, 1)
}

// ObserveSheetCall records the latency of one spreadsheet round trip.
func (m *MetricsService) ObserveSheetCall(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.sheetDuration.WithLabelValues(op).Observe(duration.Seconds())
	atomic.AddUint64(&m.sheetCallCount, 1)
	atomic.AddUint64(&m.sheetDurTotal, uint64(duration.Nanoseconds()))
	if err != nil {
		m.sheetErrors.WithLabelValues(op).Inc()
		atomic.AddUint64(&m.sheetErrCount, 1)
	}
}

// Snapshot returns aggregated counters for the ops API.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	calls := atomic.LoadUint64(&m.sheetCallCount)
	total := atomic.LoadUint64(&m.sheetDurTotal)

	var avgSheetMs float64
	if calls > 0 {
		avgSheetMs = float64(total) / float64(calls) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		UpdatesTotal:       atomic.LoadUint64(&m.updateCount),
		SheetCalls:         calls,
		SheetErrors:        atomic.LoadUint64(&m.sheetErrCount),
		AverageSheetCallMs: avgSheetMs,
		BroadcastDelivered: atomic.LoadUint64(&m.deliveredCount),
		BroadcastFailed:    atomic.LoadUint64(&m.failedCount),
		Goroutines:         runtime.NumGoroutine(),
		GeneratedAt:        time.Now().UTC(),
	}
}
