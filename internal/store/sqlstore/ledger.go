package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"CollectRecon/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore implements ledger.Store. Money is stored as decimal text.
type LedgerStore struct {
	*DB
}

func (d *DB) Ledger() *LedgerStore { return &LedgerStore{d} }

const accountColumns = `id, account_number, holder_name, balance, last_payment_amount,
	last_payment_date, version, updated_at`

func (s *LedgerStore) FindAccountByNumber(ctx context.Context, number string) (*ledger.Account, error) {
	return s.findAccount(ctx, `account_number = ?`, strings.TrimSpace(number))
}

func (s *LedgerStore) findAccount(ctx context.Context, where string, arg interface{}) (*ledger.Account, error) {
	row := s.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	var (
		a                 ledger.Account
		balance, lastAmt  string
		lastDate, updated flexTime
	)
	err := row.Scan(&a.ID, &a.AccountNumber, &a.HolderName, &balance, &lastAmt, &lastDate, &a.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("account %s balance: %w", a.AccountNumber, err)
	}
	if a.LastPaymentAmount, err = decimal.NewFromString(lastAmt); err != nil {
		return nil, fmt.Errorf("account %s last payment: %w", a.AccountNumber, err)
	}
	if lastDate.Valid {
		d := lastDate.civil()
		a.LastPaymentDate = &d
	}
	a.UpdatedAt = updated.Time.UTC()
	return &a, nil
}

func (s *LedgerStore) UpdatePayment(ctx context.Context, u ledger.PaymentUpdate) (*ledger.Account, error) {
	res, err := s.exec(ctx, `UPDATE accounts SET balance = ?, last_payment_amount = ?,
		last_payment_date = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		u.Balance.StringFixed(2), u.Amount.StringFixed(2), u.PaymentDate.Format(dateLayout),
		s.timeArg(u.UpdatedAt), u.AccountID, u.ExpectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := s.findAccount(ctx, `id = ?`, u.AccountID); err != nil {
			return nil, err
		}
		return nil, ledger.ErrVersionConflict
	}
	return s.findAccount(ctx, `id = ?`, u.AccountID)
}

func (s *LedgerStore) AppendHistory(ctx context.Context, e ledger.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `INSERT INTO payment_history
		(id, account_id, account_number, amount, payment_date, batch_id, source_row,
		 balance_before, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.AccountNumber, e.Amount.StringFixed(2), e.PaymentDate.Format(dateLayout),
		e.BatchID, e.SourceRow, e.BalanceBefore.StringFixed(2), e.BalanceAfter.StringFixed(2),
		s.timeArg(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListHistory(ctx context.Context, accountNumber string) ([]ledger.HistoryEntry, error) {
	rows, err := s.query(ctx, `SELECT id, account_id, account_number, amount, payment_date, batch_id,
		source_row, balance_before, balance_after, created_at
		FROM payment_history WHERE account_number = ? ORDER BY created_at, source_row`, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []ledger.HistoryEntry
	for rows.Next() {
		var (
			e                  ledger.HistoryEntry
			amt, before, after string
			paid, created      flexTime
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.AccountNumber, &amt, &paid, &e.BatchID,
			&e.SourceRow, &before, &after, &created); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amt)
		e.BalanceBefore, _ = decimal.NewFromString(before)
		e.BalanceAfter, _ = decimal.NewFromString(after)
		e.PaymentDate = paid.civil()
		e.CreatedAt = created.Time.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LedgerStore) UpsertAccount(ctx context.Context, a ledger.Account) (*ledger.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	number := strings.TrimSpace(a.AccountNumber)
	_, err := s.exec(ctx, `INSERT INTO accounts (id, account_number, holder_name, balance, version, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (account_number) DO UPDATE SET
			holder_name = excluded.holder_name,
			balance = excluded.balance,
			version = accounts.version + 1,
			updated_at = excluded.updated_at`,
		a.ID, number, a.HolderName, a.Balance.StringFixed(2), s.timeArg(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("upsert account %s: %w", number, err)
	}
	return s.FindAccountByNumber(ctx, number)
}
