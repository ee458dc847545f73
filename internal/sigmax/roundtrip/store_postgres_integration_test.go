//go:build integration

package roundtrip_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signals/internal/sigmax/lock"
	"signals/internal/sigmax/models"
	"signals/internal/sigmax/roundtrip"
	signalModels "signals/internal/signals/models"
	signalStore "signals/internal/signals/store"
	"signals/pkg/testutil/containers"
)

type PostgresRoundtripSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *roundtrip.PostgresStore
	signals  *signalStore.PostgresStore
}

func TestPostgresRoundtripSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRoundtripSuite))
}

func (s *PostgresRoundtripSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = roundtrip.NewPostgres(s.postgres.DB)
	s.signals = signalStore.NewPostgres(s.postgres.DB)
}

func (s *PostgresRoundtripSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "sigmax_roundtrips", "signal_notes", "signal_statuses", "signals")
	s.Require().NoError(err)
}

func (s *PostgresRoundtripSuite) createSignal() int64 {
	now := time.Now().UTC()
	sig := &signalModels.Signal{
		Text:              "Afval",
		Priority:          signalModels.PriorityNormal,
		CreatedAt:         now,
		IncidentDateStart: now,
		Status:            signalModels.Status{State: signalModels.StateVerzonden, TargetAPI: signalModels.TargetAPISigmax},
	}
	s.Require().NoError(s.signals.Create(context.Background(), sig))
	return sig.ID
}

func (s *PostgresRoundtripSuite) TestRecordAndCount() {
	ctx := context.Background()
	id := s.createSignal()

	s.Require().NoError(s.store.Record(ctx, id, 1, false))
	s.Require().NoError(s.store.Record(ctx, id, 3, true))

	count, err := s.store.Count(ctx, id)
	s.Require().NoError(err)
	s.Equal(4, count)

	rows, err := s.store.List(ctx, id)
	s.Require().NoError(err)
	s.Require().Len(rows, 4)
	s.False(rows[0].Backfilled)
	s.True(rows[1].Backfilled)
}

func (s *PostgresRoundtripSuite) TestTrackerWithAdvisoryLock() {
	ctx := context.Background()
	id := s.createSignal()
	tracker := roundtrip.NewTracker(s.store, lock.NewPostgresAdvisory(s.postgres.DB, 5*time.Second))

	s.Require().NoError(tracker.Allocate(ctx, id, func(context.Context, models.CaseID) error { return nil }))
	added, err := tracker.Reconcile(ctx, models.CaseID{SignalID: id, Sequence: 3})
	s.Require().NoError(err)
	s.Equal(2, added)

	next, err := tracker.NextSequenceNumber(ctx, id)
	s.Require().NoError(err)
	s.Equal(4, next.Sequence)
}
