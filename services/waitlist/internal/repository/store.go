package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/justbook-waitlist/pkg/config"
	"github.com/diagnosis/justbook-waitlist/pkg/database"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
)

// ErrDuplicateEmail is returned by InsertRegistrant when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrCorruptStats is returned by LoadStats when the stored counters cannot be decoded.
var ErrCorruptStats = errors.New("stats store is corrupt")

// RegistryStore holds registrants and the opt-out log. Lists come back in
// insertion order.
type RegistryStore interface {
	ListRegistrants(ctx context.Context) ([]domain.Registrant, error)
	FindRegistrant(ctx context.Context, email string) (*domain.Registrant, error)
	CountRegistrants(ctx context.Context) (int, error)
	InsertRegistrant(ctx context.Context, r domain.Registrant) error
	DeleteRegistrant(ctx context.Context, email string) error
	ListOptOuts(ctx context.Context) ([]domain.OptOut, error)
	AppendOptOut(ctx context.Context, o domain.OptOut) error
	RemoveOptOuts(ctx context.Context, email string) (int, error)
}

// StatsStore persists the {signups, surveyTaps} counters. A missing store
// loads as zero.
type StatsStore interface {
	LoadStats(ctx context.Context) (domain.Stats, error)
	SaveStats(ctx context.Context, s domain.Stats) error
	IncrementSurveyTaps(ctx context.Context) (int, error)
}

type Store interface {
	RegistryStore
	StatsStore
	Close() error
}

// Open builds the store selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendJSON:
		logger.Info("Using JSON file store", "dir", cfg.Storage.DataDir)
		return NewJSONStore(cfg.Storage.DataDir)
	case config.BackendCSV:
		logger.Info("Using CSV file store", "dir", cfg.Storage.DataDir)
		return NewCSVStore(cfg.Storage.DataDir)
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		logger.Info("Connected to database")
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
