//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	store     Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("waitlist"),
		tcpostgres.WithUsername("waitlist"),
		tcpostgres.WithPassword("waitlist"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := pgxpool.New(ctx, dsn)
	s.Require().NoError(err)
	s.pool = pool

	s.Require().NoError(Migrate(ctx, pool))
	s.Require().NoError(Migrate(ctx, pool), "schema must be re-appliable")
	s.store = NewPostgresStore(pool)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if err := testcontainers.TerminateContainer(s.container); err != nil {
		s.T().Logf("failed to terminate container: %v", err)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(),
		`TRUNCATE waitlist, opt_outs;
		 INSERT INTO stats (id) VALUES (1) ON CONFLICT (id) DO UPDATE SET signups = 0, survey_taps = 0`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRegistryInsertionOrderAndDuplicates() {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.InsertRegistrant(ctx, domain.Registrant{Name: "Alice", Email: "a@x.com", JoinedAt: base}))
	s.Require().NoError(s.store.InsertRegistrant(ctx, domain.Registrant{Name: "Bob", Email: "b@x.com", JoinedAt: base.Add(time.Minute)}))

	err := s.store.InsertRegistrant(ctx, domain.Registrant{Email: "a@x.com", JoinedAt: base})
	s.ErrorIs(err, ErrDuplicateEmail)

	list, err := s.store.ListRegistrants(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("a@x.com", list[0].Email)
	s.Equal("b@x.com", list[1].Email)

	found, err := s.store.FindRegistrant(ctx, "a@x.com")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal("Alice", found.Name)

	s.Require().NoError(s.store.DeleteRegistrant(ctx, "a@x.com"))
	missing, err := s.store.FindRegistrant(ctx, "a@x.com")
	s.Require().NoError(err)
	s.Nil(missing)

	n, err := s.store.CountRegistrants(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresStoreSuite) TestOptOuts() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.store.AppendOptOut(ctx, domain.OptOut{Name: "Alice", Email: "a@x.com", LeftAt: now}))
	s.Require().NoError(s.store.AppendOptOut(ctx, domain.OptOut{Name: "Alice", Email: "a@x.com", LeftAt: now.Add(time.Second)}))
	s.Require().NoError(s.store.AppendOptOut(ctx, domain.OptOut{Email: "c@x.com", LeftAt: now.Add(2 * time.Second)}))

	removed, err := s.store.RemoveOptOuts(ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(2, removed)

	list, err := s.store.ListOptOuts(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("c@x.com", list[0].Email)
}

func (s *PostgresStoreSuite) TestStatsSaveKeepsSurveyTaps() {
	ctx := context.Background()

	_, err := s.store.IncrementSurveyTaps(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveStats(ctx, domain.Stats{Signups: 7, SurveyTaps: 0}))

	st, err := s.store.LoadStats(ctx)
	s.Require().NoError(err)
	s.Equal(domain.Stats{Signups: 7, SurveyTaps: 1}, st)
}

func (s *PostgresStoreSuite) TestConcurrentTapsAreAtomic() {
	ctx := context.Background()
	const taps = 50

	var wg sync.WaitGroup
	for i := 0; i < taps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.IncrementSurveyTaps(ctx)
			s.NoError(err)
		}()
	}
	wg.Wait()

	st, err := s.store.LoadStats(ctx)
	s.Require().NoError(err)
	s.Equal(taps, st.SurveyTaps)
}

func (s *PostgresStoreSuite) TestMissingStatsRowLoadsAsZero() {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `DELETE FROM stats`)
	s.Require().NoError(err)

	st, err := s.store.LoadStats(ctx)
	s.Require().NoError(err)
	s.Equal(domain.Stats{}, st)

	taps, err := s.store.IncrementSurveyTaps(ctx)
	s.Require().NoError(err)
	s.Equal(1, taps)
}
