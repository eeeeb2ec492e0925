// Package metrics holds the portal's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Verification outcome labels.
const (
	OutcomeVerified        = "verified"
	OutcomeFailed          = "failed"
	OutcomeTimeout         = "timeout"
	OutcomeError           = "error"
	OutcomeBusy            = "in_progress"
	OutcomeIntegrityOK     = "integrity_ok"
	OutcomeIntegrityBroken = "integrity_broken"
)

type Metrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	verifications  *prometheus.CounterVec
	oracleLatency  prometheus.Histogram
	logins         *prometheus.CounterVec
	uploadBytes    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Use prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "educhain",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),

		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "educhain",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),

		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "educhain",
			Subsystem: "documents",
			Name:      "verifications_total",
			Help:      "Verification attempts by outcome",
		}, []string{"outcome"}),

		oracleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "educhain",
			Subsystem: "oracle",
			Name:      "classify_duration_seconds",
			Help:      "Latency of verification oracle calls",
			Buckets:   histogramBuckets,
		}),

		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "educhain",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),

		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "educhain",
			Subsystem: "documents",
			Name:      "upload_bytes_total",
			Help:      "Bytes accepted by the upload pipeline",
		}),

		gatherer: reg,
	}

	reg.MustRegister(m.requestTotal, m.requestLatency, m.verifications, m.oracleLatency, m.logins, m.uploadBytes)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(d.Seconds())
}

func (m *Metrics) ObserveVerification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOracle(d time.Duration) {
	if m == nil {
		return
	}
	m.oracleLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveUpload(n int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Add(float64(n))
}
