package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Migrate creates the waitlist tables and the stats row if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (r *postgresStore) ListRegistrants(ctx context.Context) ([]domain.Registrant, error) {
	const q = `SELECT name, email, created_at FROM waitlist ORDER BY created_at, id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Registrant
	for rows.Next() {
		var reg domain.Registrant
		if err := rows.Scan(&reg.Name, &reg.Email, &reg.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *postgresStore) FindRegistrant(ctx context.Context, email string) (*domain.Registrant, error) {
	const q = `SELECT name, email, created_at FROM waitlist WHERE email = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var reg domain.Registrant
	err := r.pool.QueryRow(ctx, q, email).Scan(&reg.Name, &reg.Email, &reg.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *postgresStore) CountRegistrants(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM waitlist`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx, q).Scan(&n)
	return n, err
}

func (r *postgresStore) InsertRegistrant(ctx context.Context, reg domain.Registrant) error {
	const q = `INSERT INTO waitlist (name, email, created_at) VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, reg.Name, reg.Email, reg.JoinedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *postgresStore) DeleteRegistrant(ctx context.Context, email string) error {
	const q = `DELETE FROM waitlist WHERE email = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, email)
	return err
}

func (r *postgresStore) ListOptOuts(ctx context.Context) ([]domain.OptOut, error) {
	const q = `SELECT name, email, created_at FROM opt_outs ORDER BY created_at, id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OptOut
	for rows.Next() {
		var o domain.OptOut
		if err := rows.Scan(&o.Name, &o.Email, &o.LeftAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *postgresStore) AppendOptOut(ctx context.Context, o domain.OptOut) error {
	const q = `INSERT INTO opt_outs (name, email, created_at) VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, o.Name, o.Email, o.LeftAt)
	return err
}

func (r *postgresStore) RemoveOptOuts(ctx context.Context, email string) (int, error) {
	const q = `DELETE FROM opt_outs WHERE email = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, email)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// LoadStats returns zero counters when the stats row is missing.
func (r *postgresStore) LoadStats(ctx context.Context) (domain.Stats, error) {
	const q = `SELECT signups, survey_taps FROM stats WHERE id = 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var st domain.Stats
	err := r.pool.QueryRow(ctx, q).Scan(&st.Signups, &st.SurveyTaps)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stats{}, nil
	}
	if err != nil {
		return domain.Stats{}, err
	}
	if st.Signups < 0 || st.SurveyTaps < 0 {
		return domain.Stats{}, fmt.Errorf("%w: negative counter", ErrCorruptStats)
	}
	return st, nil
}

// SaveStats writes the signup counter. survey_taps is only changed by
// IncrementSurveyTaps so a concurrent tap is never overwritten.
func (r *postgresStore) SaveStats(ctx context.Context, st domain.Stats) error {
	const q = `
		INSERT INTO stats (id, signups, survey_taps) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET signups = EXCLUDED.signups`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, st.Signups, st.SurveyTaps)
	return err
}

func (r *postgresStore) IncrementSurveyTaps(ctx context.Context) (int, error) {
	const q = `
		INSERT INTO stats (id, survey_taps) VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET survey_taps = GREATEST(stats.survey_taps, 0) + 1
		RETURNING survey_taps`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var taps int
	err := r.pool.QueryRow(ctx, q).Scan(&taps)
	return taps, err
}

func (r *postgresStore) Close() error {
	r.pool.Close()
	return nil
}
