// Package metrics holds the Prometheus metrics of the roadman daemon.
//
// All Record* methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for roadman.
type Metrics struct {
	// Flow controller
	CyclesStarted  *prometheus.CounterVec
	CyclesRejected prometheus.Counter
	StageFailures  *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	DecodeFailures prometheus.Counter

	// Sessions
	ActiveSessions  prometheus.Gauge
	SessionsEvicted prometheus.Counter

	// HTTP API
	HTTPRequests *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roadman_cycles_total",
			Help: "Interaction cycles started, by entry point (audio or text)",
		}, []string{"entry"}),
		CyclesRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "roadman_cycles_rejected_total",
			Help: "Submissions ignored because a cycle was already in progress",
		}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roadman_stage_failures_total",
			Help: "Service calls that failed, by stage",
		}, []string{"stage"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roadman_stage_duration_seconds",
			Help:    "Duration of service calls, by stage",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}, []string{"stage"}),
		DecodeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "roadman_audio_decode_failures_total",
			Help: "Synthesized audio payloads that could not be decoded",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "roadman_active_sessions",
			Help: "Current number of flow sessions",
		}),
		SessionsEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "roadman_sessions_evicted_total",
			Help: "Sessions dropped after being idle too long",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roadman_http_requests_total",
			Help: "HTTP requests, by route pattern and status code",
		}, []string{"route", "code"}),
	}
}

// RecordCycle counts a started cycle.
func (m *Metrics) RecordCycle(entry string) {
	if m == nil {
		return
	}
	m.CyclesStarted.WithLabelValues(entry).Inc()
}

// RecordRejected counts a submission ignored by the overlap guard.
func (m *Metrics) RecordRejected() {
	if m == nil {
		return
	}
	m.CyclesRejected.Inc()
}

// RecordStage observes one service call.
func (m *Metrics) RecordStage(stage string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordDecodeFailure counts a malformed audio payload.
func (m *Metrics) RecordDecodeFailure() {
	if m == nil {
		return
	}
	m.DecodeFailures.Inc()
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordEvicted counts evicted sessions.
func (m *Metrics) RecordEvicted(n int) {
	if m == nil {
		return
	}
	m.SessionsEvicted.Add(float64(n))
}

// RecordHTTPRequest counts an HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
