package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"signals/internal/audit"
	sigmaxModels "signals/internal/sigmax/models"
	"signals/internal/sigmax/stuf"
	"signals/internal/signals/models"
	dErrors "signals/pkg/domain-errors"
	"signals/pkg/platform/sentinel"
	"signals/pkg/requestcontext"
)

// PushResult describes what Push did with a signal.
type PushResult struct {
	// Skipped is true when the signal was not ready to send to CityControl.
	Skipped bool
	CaseID  sigmaxModels.CaseID
	Message string
}

// Handle creates a new case for signal in CityControl and attaches its PDF
// summary. Both messages are built before anything is sent. The roundtrip is
// recorded only after both were acknowledged with Bv03; any failure aborts
// and is returned unchanged in category for the caller's retry policy.
func (s *Service) Handle(ctx context.Context, signal *models.Signal) (string, error) {
	caseID, err := s.handoff(ctx, signal)
	if err != nil {
		return "", err
	}
	return sendSucceededText(caseID.String()), nil
}

// handoff does the work of Handle and returns the case identifier it created.
func (s *Service) handoff(ctx context.Context, signal *models.Signal) (sigmaxModels.CaseID, error) {
	if signal == nil {
		return sigmaxModels.CaseID{}, dErrors.New(dErrors.CodeInvalidInput, "signal is required")
	}
	ctx, span := s.tracer.Start(ctx, "sigmax.handle")
	defer span.End()
	span.SetAttributes(attribute.Int64("signal.id", signal.ID))

	var caseID sigmaxModels.CaseID
	err := s.tracker.Allocate(ctx, signal.ID, func(ctx context.Context, id sigmaxModels.CaseID) error {
		span.SetAttributes(attribute.String("sigmax.case_id", id.String()))
		now := requestcontext.Now(ctx)

		creation, err := s.builder.BuildCaseCreation(signal, id, now)
		if err != nil {
			return err
		}
		pdf, err := s.renderer.Render(ctx, signal)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render signal PDF")
		}
		attach, err := s.builder.BuildDocumentAttach(signal, id, pdf, now)
		if err != nil {
			return err
		}

		if _, err := s.sender.Send(ctx, creation, stuf.ActionCreeerZaak); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("creeerZaak for %s failed", id))
		}
		if _, err := s.sender.Send(ctx, attach, stuf.ActionVoegZaakdocumentToe); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("voegZaakdocumentToe for %s failed", id))
		}
		caseID = id
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.IncrementHandoff("failed")
		s.logger.ErrorContext(ctx, "sigmax handoff failed",
			"signal_id", signal.ID,
			"case_id", caseID.String(),
			"error", err,
		)
		return sigmaxModels.CaseID{}, err
	}

	s.metrics.IncrementHandoff("ok")
	s.auditor.Emit(ctx, audit.Event{
		Action:   audit.ActionCaseCreated,
		SignalID: signal.ID,
		CaseID:   caseID.String(),
		Outcome:  "ok",
	})
	s.logger.InfoContext(ctx, "sigmax case created", "signal_id", signal.ID, "case_id", caseID.String())
	return caseID, nil
}

// Push hands a stored signal off when its status asks for it, then moves the
// status to sent or send failed. The whole step runs under the signal lock so
// concurrent pushes for one signal send once.
func (s *Service) Push(ctx context.Context, signalID int64) (PushResult, error) {
	var result PushResult
	err := s.locker.WithLock(ctx, signalID, func(ctx context.Context) error {
		signal, err := s.signals.Get(ctx, signalID)
		if err != nil {
			return translateStoreErr(err, signalID)
		}
		if !signal.IsSigmaxApplicable() {
			result.Skipped = true
			result.Message = notReadyText(signal.Status.State, signal.Status.TargetAPI)
			s.logger.InfoContext(ctx, "signal not ready for sigmax, skipping",
				"signal_id", signalID,
				"state", string(signal.Status.State),
				"target_api", signal.Status.TargetAPI,
			)
			return nil
		}

		caseID, handleErr := s.handoff(ctx, signal)
		if handleErr != nil {
			s.auditor.Emit(ctx, audit.Event{
				Action:   audit.ActionSendFailed,
				SignalID: signalID,
				Outcome:  "failed",
				Detail:   handleErr.Error(),
			})
			if _, err := s.signals.TransitionStatus(ctx, signalID, models.StateTeVerzenden, models.Status{
				State:     models.StateVerzendenMislukt,
				Text:      sendFailedText,
				TargetAPI: models.TargetAPISigmax,
			}); err != nil {
				s.logger.ErrorContext(ctx, "failed to mark signal send failed", "signal_id", signalID, "error", err)
			}
			return handleErr
		}

		msg := sendSucceededText(caseID.String())
		result.CaseID = caseID
		result.Message = msg
		applied, err := s.signals.TransitionStatus(ctx, signalID, models.StateTeVerzenden, models.Status{
			State:     models.StateVerzonden,
			Text:      msg,
			TargetAPI: models.TargetAPISigmax,
		})
		if err != nil {
			return translateStoreErr(err, signalID)
		}
		if !applied {
			// The case exists in CityControl; only the local status moved on.
			s.logger.WarnContext(ctx, "signal left ready-to-send during handoff", "signal_id", signalID)
		}
		return nil
	})
	return result, err
}

func translateStoreErr(err error, signalID int64) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("signal %d not found", signalID))
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("signal store failed for %d", signalID))
}
