package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CollectRecon/internal/arrangement"

	"github.com/shopspring/decimal"
)

// ArrangementStore implements arrangement.Store.
type ArrangementStore struct {
	*DB
}

func (d *DB) Arrangements() *ArrangementStore { return &ArrangementStore{d} }

const arrangementColumns = `id, account_id, account_number, amount, promised_date, status,
	created_by, created_at, resolved_by, resolved_at`

func (s *ArrangementStore) Create(ctx context.Context, a *arrangement.Arrangement) error {
	_, err := s.exec(ctx, `INSERT INTO arrangements (`+arrangementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AccountID, a.AccountNumber, a.Amount.StringFixed(2), a.PromisedDate.Format(dateLayout),
		string(a.Status), a.CreatedBy, s.timeArg(a.CreatedAt), a.ResolvedBy, s.optTimeArg(a.ResolvedAt))
	if err != nil {
		return fmt.Errorf("insert arrangement: %w", err)
	}
	return nil
}

func (s *ArrangementStore) Get(ctx context.Context, id string) (*arrangement.Arrangement, error) {
	rows, err := s.query(ctx, `SELECT `+arrangementColumns+` FROM arrangements WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	list, err := scanArrangements(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, arrangement.ErrNotFound
	}
	return &list[0], nil
}

func (s *ArrangementStore) ListByAccount(ctx context.Context, accountNumber string) ([]arrangement.Arrangement, error) {
	rows, err := s.query(ctx, `SELECT `+arrangementColumns+` FROM arrangements
		WHERE account_number = ? ORDER BY created_at`, accountNumber)
	if err != nil {
		return nil, err
	}
	return scanArrangements(rows)
}

func (s *ArrangementStore) ListOverdue(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]arrangement.Arrangement, error) {
	rows, err := s.query(ctx, `SELECT `+arrangementColumns+` FROM arrangements
		WHERE status = ? AND promised_date < ? AND id > ?
		ORDER BY id LIMIT ?`,
		string(arrangement.StatusPending), cutoff.Format(dateLayout), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	return scanArrangements(rows)
}

// Transition is the sweep's claim: only a row still pending is updated.
func (s *ArrangementStore) Transition(ctx context.Context, id string, to arrangement.Status, actor string, at time.Time) (bool, error) {
	res, err := s.exec(ctx, `UPDATE arrangements SET status = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		string(to), actor, s.timeArg(at), id, string(arrangement.StatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		var exists int
		err := s.queryRow(ctx, `SELECT 1 FROM arrangements WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, arrangement.ErrNotFound
		}
		return false, err
	}
	return true, nil
}

func scanArrangements(rows *sql.Rows) ([]arrangement.Arrangement, error) {
	defer rows.Close()
	out := []arrangement.Arrangement{}
	for rows.Next() {
		var (
			a                           arrangement.Arrangement
			amount, status              string
			promised, created, resolved flexTime
		)
		if err := rows.Scan(&a.ID, &a.AccountID, &a.AccountNumber, &amount, &promised, &status,
			&a.CreatedBy, &created, &a.ResolvedBy, &resolved); err != nil {
			return nil, err
		}
		var err error
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("arrangement %s amount: %w", a.ID, err)
		}
		a.PromisedDate = promised.civil()
		a.Status = arrangement.Status(status)
		a.CreatedAt = created.Time.UTC()
		a.ResolvedAt = resolved.ptr()
		out = append(out, a)
	}
	return out, rows.Err()
}
