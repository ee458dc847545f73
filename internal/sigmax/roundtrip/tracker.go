// Package roundtrip allocates per-signal case sequence numbers and keeps them
// in step with the cases CityControl reports.
package roundtrip

import (
	"context"
	"fmt"
	"log/slog"

	"signals/internal/sigmax/lock"
	"signals/internal/sigmax/models"
	dErrors "signals/pkg/domain-errors"
)

// Store persists roundtrip records. Count and Record are called under the
// per-signal lock; implementations need no locking of their own beyond
// atomicity of a single Record call.
type Store interface {
	Count(ctx context.Context, signalID int64) (int, error)
	Record(ctx context.Context, signalID int64, n int, backfilled bool) error
	List(ctx context.Context, signalID int64) ([]models.Roundtrip, error)
}

// Tracker owns sequence allocation and reconciliation.
type Tracker struct {
	store  Store
	locker lock.Locker
	max    int
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxRoundtrips caps the number of cases per signal.
func WithMaxRoundtrips(n int) Option {
	return func(t *Tracker) {
		if n > 0 && n <= models.MaxSequenceNumber {
			t.max = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func NewTracker(store Store, locker lock.Locker, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		locker: locker,
		max:    models.MaxSequenceNumber,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NextSequenceNumber returns the case id the next send for signalID would use.
// It does not reserve the number; use Allocate for that.
func (t *Tracker) NextSequenceNumber(ctx context.Context, signalID int64) (models.CaseID, error) {
	var next models.CaseID
	err := t.locker.WithLock(ctx, signalID, func(ctx context.Context) error {
		id, err := t.next(ctx, signalID)
		next = id
		return err
	})
	return next, err
}

// Allocate runs fn with the next case id while holding the signal lock, and
// records the roundtrip only when fn succeeds. A failed attempt leaves the
// count unchanged; if the case was created anyway, Reconcile catches up when
// CityControl reports it.
func (t *Tracker) Allocate(ctx context.Context, signalID int64, fn func(ctx context.Context, id models.CaseID) error) error {
	return t.locker.WithLock(ctx, signalID, func(ctx context.Context) error {
		id, err := t.next(ctx, signalID)
		if err != nil {
			return err
		}
		if err := fn(ctx, id); err != nil {
			return err
		}
		if err := t.store.Record(ctx, signalID, 1, false); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record roundtrip")
		}
		return nil
	})
}

// Reconcile makes sure the local count covers a sequence number observed from
// CityControl, backfilling the difference. Legacy identifiers and numbers at
// or below the current count are no-ops. It returns the number of rows added.
func (t *Tracker) Reconcile(ctx context.Context, id models.CaseID) (int, error) {
	if !id.HasSequence() {
		return 0, nil
	}
	var added int
	err := t.locker.WithLock(ctx, id.SignalID, func(ctx context.Context) error {
		count, err := t.store.Count(ctx, id.SignalID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count roundtrips")
		}
		if id.Sequence <= count {
			return nil
		}
		missing := id.Sequence - count
		if err := t.store.Record(ctx, id.SignalID, missing, true); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to backfill roundtrips")
		}
		added = missing
		t.logger.InfoContext(ctx, "backfilled sigmax roundtrips",
			"signal_id", id.SignalID,
			"case_id", id.String(),
			"previous_count", count,
			"added", missing,
		)
		return nil
	})
	return added, err
}

// Count is the number of cases known for signalID.
func (t *Tracker) Count(ctx context.Context, signalID int64) (int, error) {
	n, err := t.store.Count(ctx, signalID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count roundtrips")
	}
	return n, nil
}

func (t *Tracker) next(ctx context.Context, signalID int64) (models.CaseID, error) {
	count, err := t.store.Count(ctx, signalID)
	if err != nil {
		return models.CaseID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count roundtrips")
	}
	if count >= t.max {
		return models.CaseID{}, dErrors.New(dErrors.CodeLimitExceeded,
			fmt.Sprintf("Sigmax/CityControl roundtrip maximum reached for signal %d", signalID))
	}
	return models.NewCaseID(signalID, count+1)
}
