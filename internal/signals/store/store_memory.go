package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"signals/internal/signals/models"
	"signals/pkg/platform/sentinel"
	"signals/pkg/requestcontext"
)

// InMemory is a process-local signal store. Status transitions are
// compare-and-swap under the store mutex.
type InMemory struct {
	mu      sync.RWMutex
	nextID  int64
	signals map[int64]*models.Signal
	notes   map[int64][]models.Note
}

func NewInMemory() *InMemory {
	return &InMemory{
		signals: make(map[int64]*models.Signal),
		notes:   make(map[int64][]models.Note),
	}
}

// Create stores a new signal. A zero ID is assigned from a sequence; the
// current status is recorded as the first history entry.
func (s *InMemory) Create(_ context.Context, signal *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if signal.ID == 0 {
		s.nextID++
		signal.ID = s.nextID
	} else if signal.ID > s.nextID {
		s.nextID = signal.ID
	}
	if _, ok := s.signals[signal.ID]; ok {
		return sentinel.ErrConflict
	}
	stored := cloneSignal(signal)
	stored.History = []models.Status{cloneStatus(stored.Status)}
	s.signals[signal.ID] = stored
	return nil
}

func (s *InMemory) Get(_ context.Context, id int64) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	signal, ok := s.signals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSignal(signal), nil
}

// TransitionStatus replaces the current status only when it is in expected.
func (s *InMemory) TransitionStatus(ctx context.Context, id int64, expected models.State, next models.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	signal, ok := s.signals[id]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if signal.Status.State != expected {
		return false, nil
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = requestcontext.Now(ctx)
	}
	next = cloneStatus(next)
	signal.Status = next
	signal.History = append(signal.History, next)
	return true, nil
}

func (s *InMemory) AppendNote(ctx context.Context, id int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.signals[id]; !ok {
		return sentinel.ErrNotFound
	}
	s.notes[id] = append(s.notes[id], models.Note{
		SignalID:  id,
		Text:      text,
		CreatedBy: models.NoteAuthorSigmax,
		CreatedAt: requestcontext.Now(ctx),
	})
	return nil
}

func (s *InMemory) Notes(_ context.Context, id int64) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.signals[id]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return slices.Clone(s.notes[id]), nil
}

// ListIDsInState returns ids whose current status is one of states, targets
// targetAPI, and was set at or before before. Ordered by id.
func (s *InMemory) ListIDsInState(_ context.Context, states []models.State, targetAPI string, before time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, signal := range s.signals {
		st := signal.Status
		if !slices.Contains(states, st.State) || st.TargetAPI != targetAPI {
			continue
		}
		if st.CreatedAt.After(before) {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func cloneSignal(in *models.Signal) *models.Signal {
	out := *in
	out.Status = cloneStatus(in.Status)
	out.History = make([]models.Status, len(in.History))
	for i, st := range in.History {
		out.History[i] = cloneStatus(st)
	}
	if in.Location.Address != nil {
		addr := *in.Location.Address
		out.Location.Address = &addr
	}
	if in.IncidentDateEnd != nil {
		end := *in.IncidentDateEnd
		out.IncidentDateEnd = &end
	}
	return &out
}

func cloneStatus(in models.Status) models.Status {
	out := in
	out.ExtraProperties = maps.Clone(in.ExtraProperties)
	return out
}
