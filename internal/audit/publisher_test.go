package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signals/pkg/requestcontext"
)

type failingStore struct{ InMemoryStore }

func (*failingStore) Append(context.Context, Event) error { return errors.New("disk full") }

func TestPublisher_EmitFillsDefaults(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), now)
	p.Emit(ctx, Event{Action: ActionCaseCreated, SignalID: 42, CaseID: "SIA-42.01", Outcome: "ok"})

	events, err := p.List(ctx, 42)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, ActionCaseCreated, events[0].Action)
}

func TestPublisher_StoreFailureIsSwallowed(t *testing.T) {
	p := NewPublisher(&failingStore{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotPanics(t, func() {
		p.Emit(context.Background(), Event{Action: ActionSendFailed, SignalID: 1})
	})
}

func TestPublisher_NilDropsEvents(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.Emit(context.Background(), Event{Action: ActionSendFailed})
	})
}
