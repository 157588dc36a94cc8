package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/diagnosis/justbook-waitlist/internal/utils"
	"github.com/diagnosis/justbook-waitlist/pkg/events"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/diagnosis/justbook-waitlist/pkg/metrics"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/notifier"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/repository"
	"github.com/google/uuid"
)

type WaitlistService interface {
	Join(ctx context.Context, req *domain.JoinRequest) (*domain.JoinResult, error)
	Unsubscribe(ctx context.Context, req *domain.UnsubscribeRequest) error
	TrackSurveyTap(ctx context.Context) error
	LiveStats(ctx context.Context) domain.Stats
	AdminData(ctx context.Context) *domain.AdminData
	ExportRegisteredCSV(ctx context.Context, w io.Writer) error
	ExportOptOutsCSV(ctx context.Context, w io.Writer) error
}

type Notifier interface {
	Notify(ctx context.Context, kind notifier.Kind, email, name string) notifier.Delivery
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

type Options struct {
	// MailConfigured is false when no mail transport has credentials; joins
	// are then refused before anything is written.
	MailConfigured bool
	RequireName    bool
	Now            func() time.Time
}

type waitlistService struct {
	store     repository.Store
	notifier  Notifier
	publisher EventPublisher
	metrics   *metrics.Metrics
	opts      Options
}

// NewWaitlistService wires the service. publisher and m may be nil.
func NewWaitlistService(
	store repository.Store,
	notifier Notifier,
	publisher EventPublisher,
	m *metrics.Metrics,
	opts Options,
) WaitlistService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &waitlistService{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
	}
}

func (s *waitlistService) Join(ctx context.Context, req *domain.JoinRequest) (*domain.JoinResult, error) {
	req.Normalize()
	if err := req.Validate(s.opts.RequireName); err != nil {
		return nil, s.reject(ctx, "join", err)
	}

	if !s.opts.MailConfigured {
		logger.ErrorContext(ctx, "Join refused: mail transport is not configured")
		return nil, s.reject(ctx, "join", domain.ErrConfig)
	}

	existing, err := s.store.FindRegistrant(ctx, req.Email)
	if err != nil {
		// The insert below still rejects duplicates.
		logger.WarnContext(ctx, "Registry lookup failed, treating as empty", "error", err)
	}
	if existing != nil {
		return nil, s.reject(ctx, "join", domain.ErrAlreadyRegistered)
	}

	joinedAt := s.opts.Now().UTC()
	err = s.store.InsertRegistrant(ctx, domain.Registrant{Name: req.Name, Email: req.Email, JoinedAt: joinedAt})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, s.reject(ctx, "join", domain.ErrAlreadyRegistered)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save registrant", "error", err, "email", utils.MaskEmail(req.Email))
		return nil, s.reject(ctx, "join", domain.Internal("Failed to join the waitlist", err))
	}

	if removed, err := s.store.RemoveOptOuts(ctx, req.Email); err != nil {
		logger.WarnContext(ctx, "Failed to clear opt-out history", "error", err, "email", utils.MaskEmail(req.Email))
	} else if removed > 0 {
		logger.InfoContext(ctx, "Cleared opt-out history on re-join", "email", utils.MaskEmail(req.Email), "entries", removed)
	}

	signups := s.syncSignups(ctx)
	s.metrics.IncJoins()
	logger.InfoContext(ctx, "Registrant joined", "email", utils.MaskEmail(req.Email), "signups", signups)

	delivery := s.notifier.Notify(ctx, notifier.KindWelcome, req.Email, req.Name)

	result := &domain.JoinResult{Success: true}
	if !delivery.Delivered {
		result.Warning = domain.WarningNotifyFailed
	}

	s.publish(ctx, events.WaitlistJoined, events.WaitlistJoinedEvent{
		EventID:  uuid.NewString(),
		Email:    req.Email,
		Name:     req.Name,
		JoinedAt: joinedAt,
		Signups:  signups,
		Notified: delivery.Delivered,
	})

	return result, nil
}

func (s *waitlistService) Unsubscribe(ctx context.Context, req *domain.UnsubscribeRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return s.reject(ctx, "unsubscribe", err)
	}

	existing, err := s.store.FindRegistrant(ctx, req.Email)
	if err != nil {
		logger.ErrorContext(ctx, "Registry lookup failed", "error", err)
		return s.reject(ctx, "unsubscribe", domain.Internal("Failed to unsubscribe", err))
	}
	if existing == nil {
		return s.reject(ctx, "unsubscribe", domain.ErrNotFound)
	}

	leftAt := s.opts.Now().UTC()
	if err := s.store.AppendOptOut(ctx, domain.OptOut{Name: existing.Name, Email: existing.Email, LeftAt: leftAt}); err != nil {
		logger.ErrorContext(ctx, "Failed to record opt-out", "error", err, "email", utils.MaskEmail(req.Email))
		return s.reject(ctx, "unsubscribe", domain.Internal("Failed to unsubscribe", err))
	}
	if err := s.store.DeleteRegistrant(ctx, existing.Email); err != nil {
		logger.ErrorContext(ctx, "Failed to remove registrant", "error", err, "email", utils.MaskEmail(req.Email))
		return s.reject(ctx, "unsubscribe", domain.Internal("Failed to unsubscribe", err))
	}

	signups := s.syncSignups(ctx)
	s.metrics.IncUnsubscribes()
	logger.InfoContext(ctx, "Registrant left", "email", utils.MaskEmail(req.Email), "signups", signups)

	delivery := s.notifier.Notify(ctx, notifier.KindUnsubscribe, existing.Email, existing.Name)

	s.publish(ctx, events.WaitlistUnsubscribed, events.WaitlistUnsubscribedEvent{
		EventID:  uuid.NewString(),
		Email:    existing.Email,
		Name:     existing.Name,
		LeftAt:   leftAt,
		Signups:  signups,
		Notified: delivery.Delivered,
	})

	return nil
}

func (s *waitlistService) TrackSurveyTap(ctx context.Context) error {
	taps, err := s.store.IncrementSurveyTaps(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to track survey tap", "error", err)
		return s.reject(ctx, "survey_tap", domain.Internal("Failed to track tap", err))
	}
	s.metrics.IncSurveyTaps()

	s.publish(ctx, events.SurveyTapped, events.SurveyTappedEvent{
		EventID:    uuid.NewString(),
		SurveyTaps: taps,
		TappedAt:   s.opts.Now().UTC(),
	})
	return nil
}

func (s *waitlistService) AdminData(ctx context.Context) *domain.AdminData {
	registered, err := s.store.ListRegistrants(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to list registrants, treating as empty", "error", err)
	}
	optOuts, err := s.store.ListOptOuts(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to list opt-outs, treating as empty", "error", err)
	}
	if registered == nil {
		registered = []domain.Registrant{}
	}
	if optOuts == nil {
		optOuts = []domain.OptOut{}
	}

	return &domain.AdminData{
		Registered: registered,
		OptOuts:    optOuts,
		Stats:      s.LiveStats(ctx),
	}
}

// Exports fail instead of producing an empty file when the store is unreadable.
func (s *waitlistService) ExportRegisteredCSV(ctx context.Context, w io.Writer) error {
	registered, err := s.store.ListRegistrants(ctx)
	if err != nil {
		return domain.Internal("Failed to read waitlist", err)
	}
	return repository.WriteRegistrantsCSV(w, registered)
}

func (s *waitlistService) ExportOptOutsCSV(ctx context.Context, w io.Writer) error {
	optOuts, err := s.store.ListOptOuts(ctx)
	if err != nil {
		return domain.Internal("Failed to read opt-outs", err)
	}
	return repository.WriteOptOutsCSV(w, optOuts)
}

func (s *waitlistService) reject(ctx context.Context, operation string, err error) error {
	code := domain.CodeOf(err)
	s.metrics.IncRejection(operation, string(code))
	if code != domain.CodeInternal {
		logger.DebugContext(ctx, "Request rejected", "operation", operation, "code", code)
	}
	return err
}

func (s *waitlistService) publish(ctx context.Context, subject string, event interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
