// Package metrics exposes the prometheus instruments for the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request outcomes and sale totals. A nil receiver or
// an instance built without a registerer is a no-op, so tests can pass nil.
type HTTPMetrics struct {
	requestDuration *prometheus.HistogramVec
	salesRecorded   prometheus.Counter
	salesRejected   *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	salesRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_recorded_total",
		Help: "Sales committed successfully.",
	})
	salesRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_rejected_total",
		Help: "Sales rejected before or during persistence.",
	}, []string{"reason"})
	reg.MustRegister(requestDuration, salesRecorded, salesRejected)
	return &HTTPMetrics{
		requestDuration: requestDuration,
		salesRecorded:   salesRecorded,
		salesRejected:   salesRejected,
	}
}

func (m *HTTPMetrics) ObserveRequest(method string, route string, status string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func (m *HTTPMetrics) IncSaleRecorded() {
	if m == nil || m.salesRecorded == nil {
		return
	}
	m.salesRecorded.Inc()
}

func (m *HTTPMetrics) IncSaleRejected(reason string) {
	if m == nil || m.salesRejected == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.salesRejected.WithLabelValues(reason).Inc()
}
