package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/diagnosis/justbook-waitlist/internal/platform/mailer"
	"github.com/diagnosis/justbook-waitlist/pkg/config"
	"github.com/diagnosis/justbook-waitlist/pkg/events"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/diagnosis/justbook-waitlist/pkg/metrics"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/notifier"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/repository"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds everything the HTTP server and the admin commands share.
type app struct {
	cfg      *config.Config
	store    repository.Store
	bus      *events.NATSEventBus
	registry *prometheus.Registry
	notifier *notifier.Notifier
	waitlist service.WaitlistService
}

func newApp(ctx context.Context, cfg *config.Config, mailOut io.Writer) (*app, error) {
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	n := notifier.New(newTransport(cfg.Email, mailOut), loadLogo(cfg.Email.LogoPath), cfg.Email.SendTimeout, m)

	a := &app{
		cfg:      cfg,
		store:    store,
		registry: registry,
		notifier: n,
	}

	var publisher service.EventPublisher
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL, "waitlist")
		if err != nil {
			// Events are best effort; the waitlist works without them.
			logger.Warn("NATS unavailable, events disabled", "error", err)
		} else {
			a.bus = bus
			publisher = bus
		}
	}

	mailConfigured := cfg.Email.Configured() && n.Configured()
	if !mailConfigured {
		logger.Warn("Mail transport is not configured; joins will be refused", "provider", cfg.Email.Provider)
	}

	a.waitlist = service.NewWaitlistService(store, n, publisher, m, service.Options{
		MailConfigured: mailConfigured,
		RequireName:    cfg.Waitlist.RequireName,
	})
	return a, nil
}

func (a *app) Close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logger.Warn("Failed to drain NATS connection", "error", err)
		}
	}
	a.store.Close()
}

// newTransport picks the mail transport for cfg. Dev mode wins over the
// configured provider.
func newTransport(cfg config.EmailConfig, out io.Writer) mailer.Transport {
	if cfg.DevMode || cfg.Provider == config.ProviderDev {
		return mailer.NewDevMailer(out)
	}
	switch cfg.Provider {
	case config.ProviderMailerSend:
		return mailer.NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.FromName, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}

func loadLogo(path string) []byte {
	if path == "" {
		return nil
	}
	logo, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Email logo not loaded", "path", path, "error", err)
		return nil
	}
	return logo
}
