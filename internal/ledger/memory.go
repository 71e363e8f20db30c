package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the ledger in process. Used by tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	byNumber map[string]string
	history  []HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		byNumber: make(map[string]string),
	}
}

func (m *MemoryStore) FindAccountByNumber(_ context.Context, number string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byNumber[strings.TrimSpace(number)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	a := *m.accounts[id]
	return &a, nil
}

func (m *MemoryStore) UpdatePayment(_ context.Context, u PaymentUpdate) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[u.AccountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if a.Version != u.ExpectedVersion {
		return nil, ErrVersionConflict
	}
	d := u.PaymentDate
	a.Balance = u.Balance
	a.LastPaymentAmount = u.Amount
	a.LastPaymentDate = &d
	a.Version++
	a.UpdatedAt = u.UpdatedAt
	out := *a
	return &out, nil
}

func (m *MemoryStore) AppendHistory(_ context.Context, e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.history = append(m.history, e)
	return nil
}

func (m *MemoryStore) ListHistory(_ context.Context, accountNumber string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for _, e := range m.history {
		if e.AccountNumber == accountNumber {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertAccount(_ context.Context, a Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.AccountNumber = strings.TrimSpace(a.AccountNumber)
	now := time.Now().UTC()
	if id, ok := m.byNumber[a.AccountNumber]; ok {
		cur := m.accounts[id]
		cur.HolderName = a.HolderName
		cur.Balance = a.Balance
		cur.Version++
		cur.UpdatedAt = now
		out := *cur
		return &out, nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Version = 1
	a.UpdatedAt = now
	stored := a
	m.accounts[a.ID] = &stored
	m.byNumber[a.AccountNumber] = a.ID
	return &a, nil
}
