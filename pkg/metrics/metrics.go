package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics counts sign-up, sign-in and sign-out attempts.
type AuthMetrics struct {
	attempts *prometheus.CounterVec
}

// NewAuthMetrics registers the auth metrics on the provided registerer.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		return &AuthMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Auth gateway calls by operation and outcome.",
	}, []string{"op", "outcome"})
	reg.MustRegister(attempts)
	return &AuthMetrics{attempts: attempts}
}

// IncAttempt counts one call of op that ended with outcome.
func (m *AuthMetrics) IncAttempt(op, outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// SubmissionMetrics records product submissions.
type SubmissionMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSubmissionMetrics registers the submission metrics on the provided registerer.
func NewSubmissionMetrics(reg prometheus.Registerer) *SubmissionMetrics {
	if reg == nil {
		return &SubmissionMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "product_submissions_total",
		Help: "Product submissions by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "product_submission_duration_seconds",
		Help:    "Duration of product submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(total, duration)
	return &SubmissionMetrics{total: total, duration: duration}
}

// Observe records one submission that ended with outcome after d.
func (m *SubmissionMetrics) Observe(outcome string, d time.Duration) {
	if m == nil || m.total == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.total.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SessionMetrics tracks live browser sessions held in memory.
type SessionMetrics struct {
	active  prometheus.Gauge
	evicted prometheus.Counter
}

// NewSessionMetrics registers the browser session metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "browser_sessions_active",
		Help: "Browser sessions with a live session store.",
	})
	evicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "browser_sessions_evicted_total",
		Help: "Browser sessions torn down after idling.",
	})
	reg.MustRegister(active, evicted)
	return &SessionMetrics{active: active, evicted: evicted}
}

// SetActive reports the current number of live sessions.
func (m *SessionMetrics) SetActive(n int) {
	if m == nil || m.active == nil {
		return
	}
	m.active.Set(float64(n))
}

// AddEvicted counts idle sessions removed by the janitor.
func (m *SessionMetrics) AddEvicted(n int) {
	if m == nil || m.evicted == nil || n <= 0 {
		return
	}
	m.evicted.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
