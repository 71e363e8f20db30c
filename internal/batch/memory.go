package batch

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu      sync.Mutex
	batches map[string]FileBatch
	byHash  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches: make(map[string]FileBatch),
		byHash:  make(map[string]string),
	}
}

func (m *MemoryStore) CreateBatch(_ context.Context, b *FileBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byHash[b.Fingerprint]; ok {
		return &DuplicateError{Fingerprint: b.Fingerprint, ExistingBatchID: id}
	}
	m.batches[b.ID] = clone(*b)
	m.byHash[b.Fingerprint] = b.ID
	return nil
}

func (m *MemoryStore) UpdateBatch(_ context.Context, b *FileBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[b.ID]; !ok {
		return ErrNotFound
	}
	m.batches[b.ID] = clone(*b)
	return nil
}

func (m *MemoryStore) GetBatch(_ context.Context, id string) (*FileBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(b)
	return &out, nil
}

// ListBatches returns newest first.
func (m *MemoryStore) ListBatches(_ context.Context, limit, offset int) ([]FileBatch, int, error) {
	m.mu.Lock()
	all := make([]FileBatch, 0, len(m.batches))
	for _, b := range m.batches {
		all = append(all, clone(b))
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset >= total {
		return []FileBatch{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (m *MemoryStore) BatchIDByFingerprint(_ context.Context, fp string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[fp]
	return id, ok, nil
}

func clone(b FileBatch) FileBatch {
	b.Errors = append([]string(nil), b.Errors...)
	return b
}
