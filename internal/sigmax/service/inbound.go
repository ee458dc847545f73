package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"signals/internal/audit"
	sigmaxModels "signals/internal/sigmax/models"
	"signals/internal/sigmax/stuf"
	"signals/internal/signals/models"
	"signals/pkg/platform/sentinel"
)

// Outcome of an inbound status update.
type Outcome string

const (
	// OutcomeApplied: the signal moved from sent to handled externally.
	OutcomeApplied Outcome = "applied"
	// OutcomeFallback: the signal was not in sent; a note was added instead.
	OutcomeFallback Outcome = "fallback"
	// OutcomeRejected: the message or its case identifier could not be used.
	OutcomeRejected Outcome = "rejected"
	// OutcomeNotFound: the case identifier names an unknown signal.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeFailed: storage failed while handling the update.
	OutcomeFailed Outcome = "failed"
)

// Reply is what the dispatcher sends back to CityControl.
type Reply struct {
	Outcome Outcome
	CaseID  sigmaxModels.CaseID
	// CrossRef is the inbound referentienummer, echoed in a Bv03.
	CrossRef string
	// Fault is the Fo03 error message; empty for Bv03.
	Fault string
}

// OK reports whether the reply is a Bv03.
func (r Reply) OK() bool {
	return r.Outcome == OutcomeApplied
}

// HandleStatusUpdate applies an actualiseerZaakstatus_Lk01. A signal in the
// sent state moves to handled externally. Any other state gets a note with the
// same text and the roundtrip count catches up with the sequence number
// CityControl used. Malformed ids and unknown signals change nothing.
func (s *Service) HandleStatusUpdate(ctx context.Context, body []byte) Reply {
	ctx, span := s.tracer.Start(ctx, "sigmax.status_update")
	defer span.End()

	reply := s.handleStatusUpdate(ctx, body)

	span.SetAttributes(
		attribute.String("sigmax.case_id", reply.CaseID.String()),
		attribute.String("sigmax.outcome", string(reply.Outcome)),
	)
	s.metrics.IncrementCallback(string(reply.Outcome))
	if !reply.OK() {
		s.logger.WarnContext(ctx, "sigmax status update rejected",
			"outcome", string(reply.Outcome),
			"case_id", reply.CaseID.String(),
			"error", reply.Fault,
		)
	}
	return reply
}

func (s *Service) handleStatusUpdate(ctx context.Context, body []byte) Reply {
	update, err := stuf.ParseStatusUpdate(body)
	if err != nil {
		return Reply{Outcome: OutcomeRejected, Fault: err.Error()}
	}

	id, err := sigmaxModels.ParseCaseID(update.ZaakID)
	if err != nil {
		return Reply{Outcome: OutcomeRejected, Fault: err.Error()}
	}

	reply := Reply{CaseID: id, CrossRef: update.ReferentieNummer}
	err = s.locker.WithLock(ctx, id.SignalID, func(ctx context.Context) error {
		if _, err := s.signals.Get(ctx, id.SignalID); err != nil {
			return err
		}

		applied, err := s.signals.TransitionStatus(ctx, id.SignalID, models.StateVerzonden, models.Status{
			State:           models.StateAfgehandeldExtern,
			Text:            update.StatusText(),
			TargetAPI:       models.TargetAPISigmax,
			ExtraProperties: update.Metadata(),
		})
		if err != nil {
			return err
		}
		if applied {
			reply.Outcome = OutcomeApplied
			s.auditor.Emit(ctx, audit.Event{
				Action:   audit.ActionStatusApplied,
				SignalID: id.SignalID,
				CaseID:   id.String(),
				Outcome:  string(OutcomeApplied),
				Detail:   update.StatusText(),
			})
			return nil
		}

		reply.Outcome = OutcomeFallback
		reply.Fault = notSentText(update.ZaakID, id.SequenceString())
		if err := s.signals.AppendNote(ctx, id.SignalID, update.FallbackNoteText()); err != nil {
			return err
		}
		added, err := s.tracker.Reconcile(ctx, id)
		if err != nil {
			return err
		}
		s.auditor.Emit(ctx, audit.Event{
			Action:   audit.ActionStatusFallback,
			SignalID: id.SignalID,
			CaseID:   id.String(),
			Outcome:  string(OutcomeFallback),
			Detail:   update.StatusText(),
		})
		if added > 0 {
			s.metrics.AddBackfilled(added)
			s.auditor.Emit(ctx, audit.Event{
				Action:   audit.ActionRoundtripsBackfilled,
				SignalID: id.SignalID,
				CaseID:   id.String(),
				Outcome:  "ok",
			})
		}
		return nil
	})

	switch {
	case err == nil:
		return reply
	case errors.Is(err, sentinel.ErrNotFound):
		return Reply{Outcome: OutcomeNotFound, CaseID: id, Fault: notFoundText(update.ZaakID)}
	default:
		s.logger.ErrorContext(ctx, "sigmax status update failed",
			"signal_id", id.SignalID,
			"case_id", id.String(),
			"error", err,
		)
		return Reply{Outcome: OutcomeFailed, CaseID: id, Fault: err.Error()}
	}
}
