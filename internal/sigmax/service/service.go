// Package service hands signals off to CityControl and reconciles the status
// callbacks it sends back.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"signals/internal/audit"
	"signals/internal/sigmax/lock"
	"signals/internal/sigmax/metrics"
	sigmaxModels "signals/internal/sigmax/models"
	"signals/internal/sigmax/stuf"
	"signals/internal/signals/models"
)

const defaultSendFailTimeout = 15 * time.Minute

// SignalRepository is the slice of the signal store the handoff needs.
// TransitionStatus is a compare-and-swap on the current state.
type SignalRepository interface {
	Get(ctx context.Context, id int64) (*models.Signal, error)
	TransitionStatus(ctx context.Context, id int64, expected models.State, next models.Status) (bool, error)
	AppendNote(ctx context.Context, id int64, text string) error
	ListIDsInState(ctx context.Context, states []models.State, targetAPI string, before time.Time) ([]int64, error)
}

// Sender delivers one StUF message and returns its Bv03 acknowledgement.
type Sender interface {
	Send(ctx context.Context, msg []byte, soapAction string) (*stuf.Acknowledgement, error)
}

// Renderer produces the PDF summary attached to every case.
type Renderer interface {
	Render(ctx context.Context, signal *models.Signal) ([]byte, error)
}

// Tracker allocates and reconciles case sequence numbers.
type Tracker interface {
	Allocate(ctx context.Context, signalID int64, fn func(ctx context.Context, id sigmaxModels.CaseID) error) error
	Reconcile(ctx context.Context, id sigmaxModels.CaseID) (int, error)
}

// Service orchestrates outbound handoffs and inbound status updates.
type Service struct {
	signals         SignalRepository
	sender          Sender
	renderer        Renderer
	tracker         Tracker
	locker          lock.Locker
	builder         *stuf.Builder
	auditor         *audit.Publisher
	metrics         *metrics.Metrics
	logger          *slog.Logger
	tracer          trace.Tracer
	sendFailTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithBuilder replaces the default StUF builder (sender SIA/SIA, UTC).
func WithBuilder(b *stuf.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithSendFailTimeout sets how long a signal may wait in ready-to-send before
// the sweeper marks it failed.
func WithSendFailTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sendFailTimeout = d
		}
	}
}

// New wires the service. locker must be the same Locker the tracker uses so
// allocation and the inbound status decision exclude each other per signal.
func New(signals SignalRepository, sender Sender, renderer Renderer, tracker Tracker, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		signals:         signals,
		sender:          sender,
		renderer:        renderer,
		tracker:         tracker,
		locker:          locker,
		builder:         stuf.NewBuilder(),
		logger:          slog.Default(),
		tracer:          otel.Tracer("signals/sigmax/service"),
		sendFailTimeout: defaultSendFailTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Builder exposes the StUF builder so the inbound handler renders replies
// with the same sender and timezone.
func (s *Service) Builder() *stuf.Builder {
	return s.builder
}
