package service

import (
	"context"
	"time"

	"signals/internal/audit"
	"signals/internal/signals/models"
	dErrors "signals/pkg/domain-errors"
	"signals/pkg/requestcontext"
)

// FailStuckSending moves signals that have waited in ready-to-send for
// CityControl longer than the send-fail timeout to send failed. It returns the
// ids it moved. A signal whose state changed meanwhile is left alone.
func (s *Service) FailStuckSending(ctx context.Context) ([]int64, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.sendFailTimeout)
	ids, err := s.signals.ListIDsInState(ctx, []models.State{models.StateTeVerzenden}, models.TargetAPISigmax, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list signals waiting for sigmax")
	}

	text := stuckText(int(s.sendFailTimeout / time.Minute))
	var failed []int64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return failed, dErrors.Wrap(err, dErrors.CodeTimeout, "sweep interrupted")
		}
		var applied bool
		err := s.locker.WithLock(ctx, id, func(ctx context.Context) error {
			var err error
			applied, err = s.signals.TransitionStatus(ctx, id, models.StateTeVerzenden, models.Status{
				State:     models.StateVerzendenMislukt,
				Text:      text,
				TargetAPI: models.TargetAPISigmax,
			})
			return err
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to mark stuck signal", "signal_id", id, "error", err)
			continue
		}
		if !applied {
			continue
		}
		failed = append(failed, id)
		s.auditor.Emit(ctx, audit.Event{
			Action:   audit.ActionStuckFailed,
			SignalID: id,
			Outcome:  "failed",
			Detail:   text,
		})
	}

	s.metrics.AddStuckFailed(len(failed))
	if len(failed) > 0 {
		s.logger.WarnContext(ctx, "marked stuck sigmax signals as failed", "count", len(failed), "signal_ids", failed)
	}
	return failed, nil
}
