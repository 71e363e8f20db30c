package pgstore

import (
	"context"
	"fmt"
	"time"

	"CollectRecon/internal/arrangement"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ArrangementStore struct {
	pool *pgxpool.Pool
}

func NewArrangementStore(pool *pgxpool.Pool) *ArrangementStore {
	return &ArrangementStore{pool: pool}
}

const arrangementSelect = `SELECT id, account_id, account_number, amount::text, promised_date, status,
	created_by, created_at, resolved_by, resolved_at FROM arrangements`

func (s *ArrangementStore) Create(ctx context.Context, a *arrangement.Arrangement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO arrangements
			(id, account_id, account_number, amount, promised_date, status, created_by, created_at, resolved_by, resolved_at)
		VALUES ($1, $2, $3, $4::numeric, $5::date, $6, $7, $8, $9, $10)`,
		a.ID, a.AccountID, a.AccountNumber, a.Amount.StringFixed(2), a.PromisedDate.Format("2006-01-02"),
		string(a.Status), a.CreatedBy, a.CreatedAt, a.ResolvedBy, a.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert arrangement: %w", err)
	}
	return nil
}

func (s *ArrangementStore) Get(ctx context.Context, id string) (*arrangement.Arrangement, error) {
	rows, err := s.pool.Query(ctx, arrangementSelect+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	list, err := collectArrangements(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, arrangement.ErrNotFound
	}
	return &list[0], nil
}

func (s *ArrangementStore) ListByAccount(ctx context.Context, accountNumber string) ([]arrangement.Arrangement, error) {
	rows, err := s.pool.Query(ctx, arrangementSelect+` WHERE account_number = $1 ORDER BY created_at`, accountNumber)
	if err != nil {
		return nil, err
	}
	return collectArrangements(rows)
}

func (s *ArrangementStore) ListOverdue(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]arrangement.Arrangement, error) {
	rows, err := s.pool.Query(ctx, arrangementSelect+`
		WHERE status = $1 AND promised_date < $2::date AND id > $3
		ORDER BY id
		LIMIT $4`,
		string(arrangement.StatusPending), cutoff.Format("2006-01-02"), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	return collectArrangements(rows)
}

// Transition claims a pending row; a concurrent sweeper or a manual
// confirmation that got there first leaves claimed false.
func (s *ArrangementStore) Transition(ctx context.Context, id string, to arrangement.Status, actor string, at time.Time) (bool, error) {
	var claimedID string
	err := s.pool.QueryRow(ctx, `
		UPDATE arrangements SET status = $1, resolved_by = $2, resolved_at = $3
		WHERE id = $4 AND status = $5
		RETURNING id`,
		string(to), actor, at, id, string(arrangement.StatusPending)).Scan(&claimedID)
	if err == nil {
		return true, nil
	}
	if !isNoRows(err) {
		return false, err
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM arrangements WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, arrangement.ErrNotFound
	}
	return false, nil
}

func collectArrangements(rows pgx.Rows) ([]arrangement.Arrangement, error) {
	defer rows.Close()
	out := []arrangement.Arrangement{}
	for rows.Next() {
		var (
			a              arrangement.Arrangement
			amount, status string
		)
		if err := rows.Scan(&a.ID, &a.AccountID, &a.AccountNumber, &amount, &a.PromisedDate, &status,
			&a.CreatedBy, &a.CreatedAt, &a.ResolvedBy, &a.ResolvedAt); err != nil {
			return nil, err
		}
		var err error
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("arrangement %s amount: %w", a.ID, err)
		}
		a.PromisedDate = civil(a.PromisedDate)
		a.Status = arrangement.Status(status)
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
