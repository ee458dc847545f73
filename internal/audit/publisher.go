package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"signals/pkg/requestcontext"
)

// Store is the append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySignal(ctx context.Context, signalID int64) ([]Event, error)
}

// Publisher captures audit events. Failures to store an event are logged and
// never fail the operation being audited.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// Emit fills ID, timestamp and request id when unset and appends the event.
// A nil Publisher drops events.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.store == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "failed to store audit event",
			"action", string(event.Action),
			"signal_id", event.SignalID,
			"error", err,
		)
	}
}

func (p *Publisher) List(ctx context.Context, signalID int64) ([]Event, error) {
	return p.store.ListBySignal(ctx, signalID)
}
