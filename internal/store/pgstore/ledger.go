package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CollectRecon/internal/ledger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerStore implements ledger.Store on NUMERIC columns. Amounts travel
// as text so no precision is lost on either side.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const accountSelect = `SELECT id, account_number, holder_name, balance::text, last_payment_amount::text,
	last_payment_date, version, updated_at FROM accounts`

func (s *LedgerStore) FindAccountByNumber(ctx context.Context, number string) (*ledger.Account, error) {
	return s.findAccount(ctx, accountSelect+` WHERE account_number = $1`, strings.TrimSpace(number))
}

func (s *LedgerStore) findAccount(ctx context.Context, query string, arg string) (*ledger.Account, error) {
	var (
		a                ledger.Account
		balance, lastAmt string
		lastDate         *time.Time
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(&a.ID, &a.AccountNumber, &a.HolderName,
		&balance, &lastAmt, &lastDate, &a.Version, &a.UpdatedAt)
	if isNoRows(err) {
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
	if lastDate != nil {
		d := civil(*lastDate)
		a.LastPaymentDate = &d
	}
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// UpdatePayment only writes when the stored version still matches.
func (s *LedgerStore) UpdatePayment(ctx context.Context, u ledger.PaymentUpdate) (*ledger.Account, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET balance = $1::numeric, last_payment_amount = $2::numeric, last_payment_date = $3::date,
			version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		u.Balance.StringFixed(2), u.Amount.StringFixed(2), u.PaymentDate.Format("2006-01-02"),
		u.UpdatedAt, u.AccountID, u.ExpectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.findAccount(ctx, accountSelect+` WHERE id = $1`, u.AccountID); err != nil {
			return nil, err
		}
		return nil, ledger.ErrVersionConflict
	}
	return s.findAccount(ctx, accountSelect+` WHERE id = $1`, u.AccountID)
}

func (s *LedgerStore) AppendHistory(ctx context.Context, e ledger.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_history
			(id, account_id, account_number, amount, payment_date, batch_id, source_row,
			 balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::date, $6, $7, $8::numeric, $9::numeric, $10)`,
		e.ID, e.AccountID, e.AccountNumber, e.Amount.StringFixed(2), e.PaymentDate.Format("2006-01-02"),
		e.BatchID, e.SourceRow, e.BalanceBefore.StringFixed(2), e.BalanceAfter.StringFixed(2), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListHistory(ctx context.Context, accountNumber string) ([]ledger.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, account_number, amount::text, payment_date, batch_id, source_row,
			balance_before::text, balance_after::text, created_at
		FROM payment_history
		WHERE account_number = $1
		ORDER BY created_at, source_row`, strings.TrimSpace(accountNumber))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []ledger.HistoryEntry
	for rows.Next() {
		var (
			e                  ledger.HistoryEntry
			amt, before, after string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.AccountNumber, &amt, &e.PaymentDate, &e.BatchID,
			&e.SourceRow, &before, &after, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amt)
		e.BalanceBefore, _ = decimal.NewFromString(before)
		e.BalanceAfter, _ = decimal.NewFromString(after)
		e.PaymentDate = civil(e.PaymentDate)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LedgerStore) UpsertAccount(ctx context.Context, a ledger.Account) (*ledger.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	number := strings.TrimSpace(a.AccountNumber)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, account_number, holder_name, balance, version, updated_at)
		VALUES ($1, $2, $3, $4::numeric, 1, now())
		ON CONFLICT (account_number) DO UPDATE SET
			holder_name = EXCLUDED.holder_name,
			balance = EXCLUDED.balance,
			version = accounts.version + 1,
			updated_at = now()`,
		a.ID, number, a.HolderName, a.Balance.StringFixed(2))
	if err != nil {
		return nil, fmt.Errorf("upsert account %s: %w", number, err)
	}
	return s.FindAccountByNumber(ctx, number)
}
