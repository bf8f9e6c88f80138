package appointment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the fallback store for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Appointment)}
}

func (s *MemoryStore) Upsert(_ context.Context, a Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.ID] = a
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.records[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ListRange(_ context.Context, from, to time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, 0, 8)
	for _, a := range s.records {
		if a.Deleted() {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryStore) ListByPhone(_ context.Context, phone string) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, 0, 4)
	for _, a := range s.records {
		if a.Deleted() || a.ClientPhone != phone {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryStore) ListPendingSync(_ context.Context, limit int) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, 0, 4)
	for _, a := range s.records {
		if a.SyncStatus != SyncPending {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SetSyncState(_ context.Context, id, externalID string, ifUpdatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if externalID != "" && a.ExternalID == "" {
		a.ExternalID = externalID
	}
	if !a.UpdatedAt.Equal(ifUpdatedAt) {
		s.records[id] = a
		return false, nil
	}
	a.SyncStatus = SyncSynced
	s.records[id] = a
	return true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func sortByStart(list []Appointment) {
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
}
