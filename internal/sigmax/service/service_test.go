package service

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Sender Renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"signals/internal/audit"
	"signals/internal/sigmax/lock"
	"signals/internal/sigmax/metrics"
	sigmaxModels "signals/internal/sigmax/models"
	"signals/internal/sigmax/roundtrip"
	"signals/internal/sigmax/service/mocks"
	"signals/internal/sigmax/stuf"
	"signals/internal/sigmax/transport"
	"signals/internal/signals/models"
	signalStore "signals/internal/signals/store"
	dErrors "signals/pkg/domain-errors"
	"signals/pkg/testutil"
	"signals/pkg/requestcontext"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	sender     *mocks.MockSender
	renderer   *mocks.MockRenderer
	signals    *signalStore.InMemory
	roundtrips *roundtrip.InMemory
	auditStore *audit.InMemoryStore
	metrics    *metrics.Metrics
	service    *Service
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sender = mocks.NewMockSender(s.ctrl)
	s.renderer = mocks.NewMockRenderer(s.ctrl)
	s.signals = signalStore.NewInMemory()
	s.roundtrips = roundtrip.NewInMemory()
	s.auditStore = audit.NewInMemoryStore()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locker := lock.NewSharded(time.Second)
	tracker := roundtrip.NewTracker(s.roundtrips, locker, roundtrip.WithLogger(logger))
	s.service = New(s.signals, s.sender, s.renderer, tracker, locker,
		WithLogger(logger),
		WithMetrics(s.metrics),
		WithAuditor(audit.NewPublisher(s.auditStore, logger)),
		WithSendFailTimeout(15*time.Minute),
	)
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
}

func (s *ServiceSuite) createSignal(id int64, state models.State) *models.Signal {
	sig := &models.Signal{
		ID:                id,
		Text:              "Fietswrak",
		Priority:          models.PriorityNormal,
		CreatedAt:         fixedNow.Add(-time.Hour),
		IncidentDateStart: fixedNow.Add(-2 * time.Hour),
		Status: models.Status{
			State:     state,
			TargetAPI: models.TargetAPISigmax,
			CreatedAt: fixedNow.Add(-time.Hour),
		},
		Location: models.Location{Lat: 52.37, Lon: 4.89, Stadsdeel: models.StadsdeelCentrum},
	}
	s.Require().NoError(s.signals.Create(s.ctx, sig))
	return sig
}

func (s *ServiceSuite) expectSuccessfulHandoff() {
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("%PDF-1.3"), nil)
	gomock.InOrder(
		s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionCreeerZaak).
			Return(&stuf.Acknowledgement{Berichtcode: stuf.BerichtcodeBv03}, nil),
		s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionVoegZaakdocumentToe).
			Return(&stuf.Acknowledgement{Berichtcode: stuf.BerichtcodeBv03}, nil),
	)
}

func (s *ServiceSuite) roundtripCount(id int64) int {
	n, err := s.roundtrips.Count(s.ctx, id)
	s.Require().NoError(err)
	return n
}

func (s *ServiceSuite) statusUpdate(zaakID, resultaat, reden string) []byte {
	return testutil.StatusUpdateEnvelope(testutil.StatusUpdate{
		ZaakID:           zaakID,
		Resultaat:        resultaat,
		Reden:            reden,
		Einddatum:        "20240501",
		DatumStatusGezet: "20240501113000",
	})
}

func (s *ServiceSuite) TestHandle_SendsBothMessagesAndRecordsRoundtrip() {
	sig := s.createSignal(42, models.StateTeVerzenden)

	var creation []byte
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("%PDF-1.3"), nil)
	gomock.InOrder(
		s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionCreeerZaak).
			DoAndReturn(func(_ context.Context, msg []byte, _ string) (*stuf.Acknowledgement, error) {
				creation = msg
				return &stuf.Acknowledgement{Berichtcode: stuf.BerichtcodeBv03}, nil
			}),
		s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionVoegZaakdocumentToe).
			Return(&stuf.Acknowledgement{Berichtcode: stuf.BerichtcodeBv03}, nil),
	)

	msg, err := s.service.Handle(s.ctx, sig)

	s.Require().NoError(err)
	s.Equal("Verzending van melding naar THOR is gelukt onder nummer SIA-42.01.", msg)
	s.Contains(string(creation), "SIA-42.01")
	s.Equal(1, s.roundtripCount(42))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Handoffs.WithLabelValues("ok")))
}

func (s *ServiceSuite) TestHandle_SecondSendUsesNextSequence() {
	sig := s.createSignal(42, models.StateTeVerzenden)
	s.expectSuccessfulHandoff()
	s.expectSuccessfulHandoff()

	_, err := s.service.Handle(s.ctx, sig)
	s.Require().NoError(err)
	msg, err := s.service.Handle(s.ctx, sig)
	s.Require().NoError(err)

	s.Contains(msg, "SIA-42.02")
	s.Equal(2, s.roundtripCount(42))
}

func (s *ServiceSuite) TestHandle_CreationFailureStopsBeforeAttach() {
	sig := s.createSignal(42, models.StateTeVerzenden)
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("%PDF-1.3"), nil)
	sendErr := &transport.SigmaxError{Category: transport.CategoryProtocol, Message: "acknowledgement is not Bv03"}
	s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionCreeerZaak).Return(nil, sendErr)

	_, err := s.service.Handle(s.ctx, sig)

	s.Require().Error(err)
	s.Equal(transport.CategoryProtocol, transport.CategoryOf(err))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(0, s.roundtripCount(42))
}

func (s *ServiceSuite) TestHandle_AttachFailureRecordsNothing() {
	sig := s.createSignal(42, models.StateTeVerzenden)
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("%PDF-1.3"), nil)
	s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionCreeerZaak).
		Return(&stuf.Acknowledgement{Berichtcode: stuf.BerichtcodeBv03}, nil)
	s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionVoegZaakdocumentToe).
		Return(nil, errors.New("connection reset"))

	_, err := s.service.Handle(s.ctx, sig)

	s.Require().Error(err)
	s.Equal(0, s.roundtripCount(42))
}

func (s *ServiceSuite) TestHandle_RenderFailureSendsNothing() {
	sig := s.createSignal(42, models.StateTeVerzenden)
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return(nil, errors.New("font missing"))

	_, err := s.service.Handle(s.ctx, sig)

	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestHandle_MaxRoundtrips() {
	sig := s.createSignal(42, models.StateTeVerzenden)
	s.Require().NoError(s.roundtrips.Record(s.ctx, 42, sigmaxModels.MaxSequenceNumber, false))

	_, err := s.service.Handle(s.ctx, sig)

	s.True(dErrors.HasCode(err, dErrors.CodeLimitExceeded))
}

func (s *ServiceSuite) TestPush_Success() {
	s.createSignal(42, models.StateTeVerzenden)
	s.expectSuccessfulHandoff()

	res, err := s.service.Push(s.ctx, 42)

	s.Require().NoError(err)
	s.False(res.Skipped)
	s.Equal("SIA-42.01", res.CaseID.String())
	s.Equal("Verzending van melding naar THOR is gelukt onder nummer SIA-42.01.", res.Message)
	stored, _ := s.signals.Get(s.ctx, 42)
	s.Equal(models.StateVerzonden, stored.Status.State)
	s.Equal("Verzending van melding naar THOR is gelukt onder nummer SIA-42.01.", stored.Status.Text)

	events, _ := s.auditStore.ListBySignal(s.ctx, 42)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionCaseCreated, events[0].Action)
}

func (s *ServiceSuite) TestPush_FailureMarksSendFailed() {
	s.createSignal(42, models.StateTeVerzenden)
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return([]byte("%PDF-1.3"), nil)
	s.sender.EXPECT().Send(gomock.Any(), gomock.Any(), stuf.ActionCreeerZaak).
		Return(nil, &transport.SigmaxError{Category: transport.CategoryTransport, Message: "request failed", Retryable: true})

	_, err := s.service.Push(s.ctx, 42)

	s.Require().Error(err)
	s.True(transport.IsRetryable(err))
	stored, _ := s.signals.Get(s.ctx, 42)
	s.Equal(models.StateVerzendenMislukt, stored.Status.State)
	s.Equal("Verzending van melding naar THOR is mislukt.", stored.Status.Text)
}

func (s *ServiceSuite) TestPush_SkipsSignalsNotReady() {
	s.createSignal(42, models.StateGemeld)

	res, err := s.service.Push(s.ctx, 42)

	s.Require().NoError(err)
	s.True(res.Skipped)
	s.Equal("status m/sigmax is not ready for sigmax", res.Message)
}

func (s *ServiceSuite) TestPush_UnknownSignal() {
	_, err := s.service.Push(s.ctx, 404)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestPush_ConcurrentPushesSendOnce() {
	s.createSignal(42, models.StateTeVerzenden)
	s.expectSuccessfulHandoff()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Push(s.ctx, 42)
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(1, s.roundtripCount(42))
}

func (s *ServiceSuite) TestStatusUpdate_HappyPath() {
	s.createSignal(42, models.StateVerzonden)

	reply := s.service.HandleStatusUpdate(s.ctx, s.statusUpdate("SIA-42.02", "Er is gehandhaafd", ""))

	s.Require().True(reply.OK(), reply.Fault)
	s.Equal("02", reply.CaseID.SequenceString())
	s.Equal("CTC-1", reply.CrossRef)

	stored, _ := s.signals.Get(s.ctx, 42)
	s.Equal(models.StateAfgehandeldExtern, stored.Status.State)
	s.Equal("Er is gehandhaafd: Geen reden aangeleverd vanuit THOR", stored.Status.Text)
	s.Equal("20240501113000", stored.Status.ExtraProperties[sigmaxModels.ExtraDatumAfgehandeld])
	s.Equal("Er is gehandhaafd", stored.Status.ExtraProperties[sigmaxModels.ExtraResultaat])

	notes, _ := s.signals.Notes(s.ctx, 42)
	s.Empty(notes)
}

func (s *ServiceSuite) TestStatusUpdate_FallbackWhenNotSent() {
	s.createSignal(42, models.StateAfgehandeldExtern)

	reply := s.service.HandleStatusUpdate(s.ctx, s.statusUpdate("SIA-42.02", "Er is gehandhaafd", ""))

	s.False(reply.OK())
	s.Equal(OutcomeFallback, reply.Outcome)
	s.Equal("Melding met zaak identificatie SIA-42.02 en volgnummer 02 was niet in verzonden staat in SIA.", reply.Fault)

	stored, _ := s.signals.Get(s.ctx, 42)
	s.Equal(models.StateAfgehandeldExtern, stored.Status.State)
	s.Len(stored.History, 1)

	notes, _ := s.signals.Notes(s.ctx, 42)
	s.Require().Len(notes, 1)
	s.Equal("Zaak status update ontvangen van CityControl terwijl SIA melding niet in verzonden staat was.\n\n Er is gehandhaafd: Geen reden aangeleverd vanuit THOR", notes[0].Text)
	s.GreaterOrEqual(s.roundtripCount(42), 2)
	s.Equal(2.0, promtest.ToFloat64(s.metrics.RoundtripsBackfilled))
}

func (s *ServiceSuite) TestStatusUpdate_RedeliveryLandsInFallback() {
	s.createSignal(42, models.StateVerzonden)
	body := s.statusUpdate("SIA-42.01", "Opgeruimd", "Fiets verwijderd")

	first := s.service.HandleStatusUpdate(s.ctx, body)
	second := s.service.HandleStatusUpdate(s.ctx, body)

	s.True(first.OK())
	s.Equal(OutcomeFallback, second.Outcome)
	stored, _ := s.signals.Get(s.ctx, 42)
	s.Len(stored.History, 2, "one transition only")
	s.Equal(1, s.roundtripCount(42))
}

func (s *ServiceSuite) TestStatusUpdate_LegacyIdentifierSkipsReconcile() {
	s.createSignal(42, models.StateGemeld)

	reply := s.service.HandleStatusUpdate(s.ctx, s.statusUpdate("SIA-42", "", ""))

	s.Equal(OutcomeFallback, reply.Outcome)
	s.Equal("Melding met zaak identificatie SIA-42 en volgnummer - was niet in verzonden staat in SIA.", reply.Fault)
	s.Equal(0, s.roundtripCount(42))
}

func (s *ServiceSuite) TestStatusUpdate_UnknownSignal() {
	reply := s.service.HandleStatusUpdate(s.ctx, s.statusUpdate("SIA-999.01", "Opgeruimd", ""))

	s.Equal(OutcomeNotFound, reply.Outcome)
	s.Equal("Melding met sia_id SIA-999.01 niet gevonden.", reply.Fault)
	s.Equal(0, s.roundtripCount(999))
}

func (s *ServiceSuite) TestStatusUpdate_MalformedIdentifier() {
	s.createSignal(42, models.StateVerzonden)

	for _, id := range []string{"SIA-42.00", "SIA-042.01", "42", "SIA-42.1", ""} {
		reply := s.service.HandleStatusUpdate(s.ctx, s.statusUpdate(id, "Opgeruimd", ""))
		s.Equal(OutcomeRejected, reply.Outcome, id)
		s.Equal(fmt.Sprintf("Incorrect value for sia_id: %q", id), reply.Fault)
	}

	stored, _ := s.signals.Get(s.ctx, 42)
	s.Equal(models.StateVerzonden, stored.Status.State)
	notes, _ := s.signals.Notes(s.ctx, 42)
	s.Empty(notes)
}

func (s *ServiceSuite) TestStatusUpdate_NotXML() {
	reply := s.service.HandleStatusUpdate(s.ctx, []byte("status: done"))
	s.Equal(OutcomeRejected, reply.Outcome)
	s.NotEmpty(reply.Fault)
}

func (s *ServiceSuite) TestStatusUpdate_ConcurrentDeliveriesApplyOnce() {
	s.createSignal(42, models.StateVerzonden)
	body := s.statusUpdate("SIA-42.01", "Opgeruimd", "")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.service.HandleStatusUpdate(s.ctx, body).OK() {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, applied)
	notes, _ := s.signals.Notes(s.ctx, 42)
	s.Len(notes, 9)
}

func (s *ServiceSuite) TestFailStuckSending() {
	s.createSignal(1, models.StateTeVerzenden)
	fresh := s.createSignal(2, models.StateTeVerzenden)
	s.createSignal(3, models.StateVerzonden)

	// Signal 2 was set ready-to-send a minute ago.
	_, err := s.signals.TransitionStatus(s.ctx, fresh.ID, models.StateTeVerzenden, models.Status{
		State: models.StateTeVerzenden, TargetAPI: models.TargetAPISigmax, CreatedAt: fixedNow.Add(-time.Minute),
	})
	s.Require().NoError(err)

	failed, err := s.service.FailStuckSending(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{1}, failed)
	stored, _ := s.signals.Get(s.ctx, 1)
	s.Equal(models.StateVerzendenMislukt, stored.Status.State)
	s.Equal("Melding stond langer dan 15 minuten op TE_VERZENDEN. Mislukt", stored.Status.Text)

	stillWaiting, _ := s.signals.Get(s.ctx, 2)
	s.Equal(models.StateTeVerzenden, stillWaiting.Status.State)
}
