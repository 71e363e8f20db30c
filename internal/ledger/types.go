package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrMissingAmount   = errors.New("payment amount missing or zero")
	ErrVersionConflict = errors.New("account was modified concurrently")
)

type Account struct {
	ID                string          `json:"id"`
	AccountNumber     string          `json:"account_number"`
	HolderName        string          `json:"holder_name"`
	Balance           decimal.Decimal `json:"balance"`
	LastPaymentAmount decimal.Decimal `json:"last_payment_amount"`
	LastPaymentDate   *time.Time      `json:"last_payment_date,omitempty"`
	Version           int64           `json:"version"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// HistoryEntry is append-only.
type HistoryEntry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	BatchID       string          `json:"batch_id"`
	SourceRow     int             `json:"source_row"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentUpdate is applied only when the stored version still equals
// ExpectedVersion.
type PaymentUpdate struct {
	AccountID       string
	ExpectedVersion int64
	Balance         decimal.Decimal
	Amount          decimal.Decimal
	PaymentDate     time.Time
	UpdatedAt       time.Time
}

type Store interface {
	FindAccountByNumber(ctx context.Context, number string) (*Account, error)
	// UpdatePayment returns ErrVersionConflict when the version moved.
	UpdatePayment(ctx context.Context, u PaymentUpdate) (*Account, error)
	AppendHistory(ctx context.Context, e HistoryEntry) error
	ListHistory(ctx context.Context, accountNumber string) ([]HistoryEntry, error)
	// UpsertAccount creates the account or replaces its holder and balance.
	UpsertAccount(ctx context.Context, a Account) (*Account, error)
}
