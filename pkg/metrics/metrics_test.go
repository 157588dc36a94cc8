package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncJoins()
		m.IncUnsubscribes()
		m.IncSurveyTaps()
		m.IncRejection("join", "INVALID_INPUT")
		m.IncNotification("welcome", true)
		m.IncStatsRepairs()
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncJoins()
	m.IncJoins()
	m.IncRejection("join", "ALREADY_REGISTERED")
	m.IncNotification("welcome", false)
	m.IncNotification("welcome", true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Joins))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Rejections.WithLabelValues("join", "ALREADY_REGISTERED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Notifications.WithLabelValues("welcome", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Notifications.WithLabelValues("welcome", "delivered")))

	count, err := testutil.GatherAndCount(reg, "waitlist_joins_total", "waitlist_rejections_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}
