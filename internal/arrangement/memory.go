package arrangement

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Arrangement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Arrangement)}
}

func (m *MemoryStore) Create(_ context.Context, a *Arrangement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = *a
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Arrangement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryStore) ListByAccount(_ context.Context, accountNumber string) ([]Arrangement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Arrangement{}
	for _, a := range m.items {
		if a.AccountNumber == accountNumber {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListOverdue(_ context.Context, cutoff time.Time, afterID string, limit int) ([]Arrangement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Arrangement
	for _, a := range m.items {
		if a.Status == StatusPending && a.PromisedDate.Before(cutoff) && a.ID > afterID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Transition(_ context.Context, id string, to Status, actor string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != StatusPending {
		return false, nil
	}
	a.Status = to
	a.ResolvedBy = actor
	a.ResolvedAt = &at
	m.items[id] = a
	return true, nil
}
