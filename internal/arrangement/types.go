package arrangement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusDefaulted Status = "defaulted"
)

func (s Status) Terminal() bool { return s == StatusPaid || s == StatusDefaulted }

// SystemActor resolves arrangements transitioned by the sweep.
const SystemActor = "system"

var (
	ErrNotFound      = errors.New("arrangement not found")
	ErrTerminal      = errors.New("arrangement is already resolved")
	ErrInvalidAmount = errors.New("arrangement amount must be positive")
	ErrInvalidDate   = errors.New("promised date is required")
)

type Arrangement struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	PromisedDate  time.Time       `json:"promised_date"`
	Status        Status          `json:"status"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedBy    string          `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

type Store interface {
	Create(ctx context.Context, a *Arrangement) error
	Get(ctx context.Context, id string) (*Arrangement, error)
	ListByAccount(ctx context.Context, accountNumber string) ([]Arrangement, error)
	// ListOverdue pages pending arrangements promised strictly before cutoff,
	// ordered by id and starting after afterID.
	ListOverdue(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]Arrangement, error)
	// Transition moves a pending arrangement to status. claimed is false when
	// the arrangement was no longer pending.
	Transition(ctx context.Context, id string, to Status, actor string, at time.Time) (claimed bool, err error)
}
