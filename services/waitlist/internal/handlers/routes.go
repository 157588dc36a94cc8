package handlers

import (
	"net/http"
	"time"

	mw "github.com/diagnosis/justbook-waitlist/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type RouterOptions struct {
	ServiceName    string
	AllowedOrigins []string
	// RateLimiter may be nil to disable per-IP limits.
	RateLimiter     mw.RateLimitChecker
	RateLimitPerIP  int
	RateLimitWindow time.Duration
	Gatherer        prometheus.Gatherer
}

func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName(opts.ServiceName))
	r.Use(mw.Logging)
	r.Use(mw.CORS(opts.AllowedOrigins))
	r.Use(mw.Health)
	if opts.Gatherer != nil {
		r.Use(mw.Metrics(opts.Gatherer))
	}

	limit := func(scope string) func(http.Handler) http.Handler {
		return mw.RateLimit(opts.RateLimiter, scope, opts.RateLimitPerIP, opts.RateLimitWindow)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(limit("join")).Post("/waitlist", h.Join)
		r.With(limit("unsubscribe")).Post("/waitlist/unsubscribe", h.Unsubscribe)
		r.With(limit("survey")).Post("/survey/tap", h.SurveyTap)
		r.Get("/stats", h.Stats)

		r.Route("/admin", func(r chi.Router) {
			r.With(limit("admin_login")).Post("/login", h.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/data", h.AdminData)
				r.Get("/export/registered.csv", h.ExportRegistered)
				r.Get("/export/opt-outs.csv", h.ExportOptOuts)
			})
		})
	})

	return r
}
