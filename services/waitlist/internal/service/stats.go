package service

import (
	"context"

	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
)

// LiveStats returns the stored counters with signups corrected to the live
// registry count. Unreadable stats are rebuilt from zero and written back.
func (s *waitlistService) LiveStats(ctx context.Context) domain.Stats {
	stored, loadErr := s.store.LoadStats(ctx)
	if loadErr != nil {
		logger.WarnContext(ctx, "Stats store unreadable, rebuilding", "error", loadErr)
		stored = domain.Stats{}
	}

	count, err := s.store.CountRegistrants(ctx)
	if err != nil {
		// An unreadable registry is reported as empty but never written back.
		logger.WarnContext(ctx, "Failed to count registrants, treating as empty", "error", err)
		stored.Signups = 0
		return stored
	}

	if loadErr == nil && stored.Signups == count {
		return stored
	}

	logger.InfoContext(ctx, "Repairing signup counter", "stored", stored.Signups, "live", count)
	stored.Signups = count
	s.metrics.IncStatsRepairs()
	if err := s.store.SaveStats(ctx, stored); err != nil {
		logger.WarnContext(ctx, "Failed to persist repaired stats", "error", err)
	}
	return stored
}

// syncSignups persists the live registrant count after a mutation. A failed
// write is left for the next LiveStats call to repair.
func (s *waitlistService) syncSignups(ctx context.Context) int {
	count, err := s.store.CountRegistrants(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to count registrants after update", "error", err)
		return 0
	}

	st, err := s.store.LoadStats(ctx)
	if err != nil {
		st = domain.Stats{}
	}
	st.Signups = count
	if err := s.store.SaveStats(ctx, st); err != nil {
		logger.WarnContext(ctx, "Failed to update signup counter", "error", err)
	}
	return count
}
