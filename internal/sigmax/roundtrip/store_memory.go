package roundtrip

import (
	"context"
	"sync"

	"signals/internal/sigmax/models"
	"signals/pkg/requestcontext"
)

// InMemory keeps roundtrips in process memory.
type InMemory struct {
	mu   sync.RWMutex
	rows map[int64][]models.Roundtrip
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[int64][]models.Roundtrip)}
}

func (s *InMemory) Count(_ context.Context, signalID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[signalID]), nil
}

func (s *InMemory) Record(ctx context.Context, signalID int64, n int, backfilled bool) error {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.rows[signalID] = append(s.rows[signalID], models.Roundtrip{
			SignalID:   signalID,
			Backfilled: backfilled,
			CreatedAt:  now,
		})
	}
	return nil
}

func (s *InMemory) List(_ context.Context, signalID int64) ([]models.Roundtrip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Roundtrip, len(s.rows[signalID]))
	copy(out, s.rows[signalID])
	return out, nil
}
