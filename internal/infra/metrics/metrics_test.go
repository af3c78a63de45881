package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/portal-session/internal/infra/metrics"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveLogin("password", metrics.OutcomeSuccess, 20*time.Millisecond)
	m.ObserveLogin("password", metrics.OutcomeSuccess, 0)
	m.ObservePIN(metrics.OutcomeRejected)
	m.ObserveAutoLogin(metrics.OutcomeSkipped)

	assert.InDelta(t, 2, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("password", metrics.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PINVerifications.WithLabelValues(metrics.OutcomeRejected)), 0)

	summary, err := metrics.Summary(reg)
	require.NoError(t, err)
	assert.InDelta(t, 2, summary["portal_session_login_attempts_total,flow=password,outcome=success"], 0)
	assert.InDelta(t, 1, summary["portal_session_login_duration_seconds,count"], 0)
	assert.InDelta(t, 1, summary["portal_session_auto_logins_total,outcome=skipped"], 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveLogin("pin", metrics.OutcomeNetwork, time.Second)
		m.ObservePIN(metrics.OutcomeSuccess)
		m.ObserveAutoLogin(metrics.OutcomeSuccess)
		m.ObserveValidation(metrics.OutcomeSuccess)
	})
}
