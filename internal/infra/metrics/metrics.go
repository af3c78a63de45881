// Package metrics holds the prometheus collectors of the session client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portal_session"

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeNetwork   = "network_error"
	OutcomeStorage   = "storage_error"
	OutcomeInvalid   = "invalid"
	OutcomeCoalesced = "coalesced"
	OutcomeSkipped   = "skipped"
)

// Metrics groups the collectors used by the session services.
type Metrics struct {
	LoginAttempts    *prometheus.CounterVec
	LoginDuration    prometheus.Histogram
	PINVerifications *prometheus.CounterVec
	AutoLogins       *prometheus.CounterVec
	TokenValidations *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to get isolated instances.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by flow and outcome.",
		}, []string{"flow", "outcome"}),
		LoginDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "login_duration_seconds",
			Help:      "Duration of login network calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		PINVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_verifications_total",
			Help:      "PIN verifications by outcome.",
		}, []string{"outcome"}),
		AutoLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_logins_total",
			Help:      "Auto-login runs by outcome.",
		}, []string{"outcome"}),
		TokenValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validations_total",
			Help:      "Remote token validations by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LoginAttempts,
			m.LoginDuration,
			m.PINVerifications,
			m.AutoLogins,
			m.TokenValidations,
		)
	}

	return m
}

// ObserveLogin records one login attempt.
func (m *Metrics) ObserveLogin(flow, outcome string, took time.Duration) {
	if m == nil {
		return
	}

	m.LoginAttempts.WithLabelValues(flow, outcome).Inc()

	if took > 0 {
		m.LoginDuration.Observe(took.Seconds())
	}
}

// ObservePIN records one PIN verification.
func (m *Metrics) ObservePIN(outcome string) {
	if m == nil {
		return
	}

	m.PINVerifications.WithLabelValues(outcome).Inc()
}

// ObserveAutoLogin records one auto-login run.
func (m *Metrics) ObserveAutoLogin(outcome string) {
	if m == nil {
		return
	}

	m.AutoLogins.WithLabelValues(outcome).Inc()
}

// ObserveValidation records one remote token validation.
func (m *Metrics) ObserveValidation(outcome string) {
	if m == nil {
		return
	}

	m.TokenValidations.WithLabelValues(outcome).Inc()
}

// Summary flattens the counters of reg into name{labels}=value pairs for
// logging at shutdown.
func Summary(reg prometheus.Gatherer) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	out := make(map[string]float64)

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()

			for _, label := range metric.GetLabel() {
				key += "," + label.GetName() + "=" + label.GetValue()
			}

			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[key+",count"] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	return out, nil
}
