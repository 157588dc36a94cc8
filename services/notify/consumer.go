package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/diagnosis/justbook-waitlist/internal/utils"
	"github.com/diagnosis/justbook-waitlist/pkg/events"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// consumer records waitlist activity published by the waitlist service.
type consumer struct {
	received *prometheus.CounterVec
	lastTaps prometheus.Gauge
}

func newConsumer(reg prometheus.Registerer) *consumer {
	f := promauto.With(reg)
	return &consumer{
		received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_waitlist_events_total",
			Help: "Waitlist events consumed, by subject and outcome",
		}, []string{"subject", "outcome"}),
		lastTaps: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_waitlist_survey_taps",
			Help: "Survey tap total from the most recent tap event",
		}),
	}
}

// Handle is the NATS callback. Bad payloads are logged and dropped.
func (c *consumer) Handle(msg *events.Message) {
	ctx := context.Background()
	if err := c.handle(ctx, msg); err != nil {
		c.received.WithLabelValues(msg.Subject, "error").Inc()
		logger.WarnContext(ctx, "Dropping waitlist event", "subject", msg.Subject, "id", msg.ID, "error", err)
		return
	}
	c.received.WithLabelValues(msg.Subject, "ok").Inc()
}

func (c *consumer) handle(ctx context.Context, msg *events.Message) error {
	switch msg.Subject {
	case events.WaitlistJoined:
		var e events.WaitlistJoinedEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return fmt.Errorf("decode joined event: %w", err)
		}
		logger.InfoContext(ctx, "Waitlist signup",
			"event_id", e.EventID,
			"email", utils.MaskEmail(e.Email),
			"signups", e.Signups,
			"notified", e.Notified,
		)
		if !e.Notified {
			logger.WarnContext(ctx, "Welcome email was not delivered", "event_id", e.EventID)
		}

	case events.WaitlistUnsubscribed:
		var e events.WaitlistUnsubscribedEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return fmt.Errorf("decode unsubscribed event: %w", err)
		}
		logger.InfoContext(ctx, "Waitlist opt-out",
			"event_id", e.EventID,
			"email", utils.MaskEmail(e.Email),
			"signups", e.Signups,
			"notified", e.Notified,
		)

	case events.SurveyTapped:
		var e events.SurveyTappedEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return fmt.Errorf("decode survey event: %w", err)
		}
		c.lastTaps.Set(float64(e.SurveyTaps))
		logger.InfoContext(ctx, "Survey tapped", "event_id", e.EventID, "survey_taps", e.SurveyTaps)

	default:
		return fmt.Errorf("unknown subject %q", msg.Subject)
	}
	return nil
}
