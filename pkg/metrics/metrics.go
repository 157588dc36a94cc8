package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the waitlist counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Joins         prometheus.Counter
	Unsubscribes  prometheus.Counter
	SurveyTaps    prometheus.Counter
	Rejections    *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	StatsRepairs  prometheus.Counter
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Joins: f.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_joins_total",
			Help: "Successful waitlist registrations",
		}),
		Unsubscribes: f.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_unsubscribes_total",
			Help: "Successful waitlist opt-outs",
		}),
		SurveyTaps: f.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_survey_taps_total",
			Help: "Survey taps recorded by this process",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_rejections_total",
			Help: "Waitlist operations rejected, by error code",
		}, []string{"operation", "code"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_notifications_total",
			Help: "Notification attempts, by kind and outcome",
		}, []string{"kind", "outcome"}),
		StatsRepairs: f.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_stats_repairs_total",
			Help: "Times the stored signup counter disagreed with the registry",
		}),
	}
}

func (m *Metrics) IncJoins() {
	if m == nil {
		return
	}
	m.Joins.Inc()
}

func (m *Metrics) IncUnsubscribes() {
	if m == nil {
		return
	}
	m.Unsubscribes.Inc()
}

func (m *Metrics) IncSurveyTaps() {
	if m == nil {
		return
	}
	m.SurveyTaps.Inc()
}

func (m *Metrics) IncRejection(operation, code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) IncNotification(kind string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if delivered {
		outcome = "delivered"
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncStatsRepairs() {
	if m == nil {
		return
	}
	m.StatsRepairs.Inc()
}
