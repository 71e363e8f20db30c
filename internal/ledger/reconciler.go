package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"CollectRecon/internal/config"
	"CollectRecon/internal/normalize"
	"CollectRecon/internal/notification"
	"CollectRecon/internal/resource"
	"CollectRecon/internal/schema"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Config struct {
	// ApplyDefaultAmount substitutes DefaultAmount for zero, missing or
	// unparseable payment amounts. When off those records fail.
	ApplyDefaultAmount bool
	DefaultAmount      decimal.Decimal
	MaxConflictRetries int
	Location           *time.Location
}

func DefaultConfig() Config {
	loc, err := time.LoadLocation(config.DefaultTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return Config{
		ApplyDefaultAmount: config.ApplyDefaultAmount,
		DefaultAmount:      decimal.RequireFromString(config.DefaultPaymentAmount),
		MaxConflictRetries: config.DefaultMaxConflictRetries,
		Location:           loc,
	}
}

// Publisher receives activity events. *notification.NotificationService
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev notification.Event)
}

type Result struct {
	AccountID      string
	AccountNumber  string
	Amount         decimal.Decimal
	PaymentDate    time.Time
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	DefaultApplied bool
	// HistoryErr is set when the balance was updated but the history entry
	// could not be written.
	HistoryErr error
}

type Reconciler struct {
	store  Store
	locks  *resource.Locker
	events Publisher
	cfg    Config
	now    func() time.Time
}

func NewReconciler(store Store, locks *resource.Locker, events Publisher, cfg Config) *Reconciler {
	if locks == nil {
		locks = resource.NewLocker()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = 0
	}
	return &Reconciler{store: store, locks: locks, events: events, cfg: cfg, now: time.Now}
}

func (r *Reconciler) Store() Store { return r.store }

// Apply posts one validated record against its account.
func (r *Reconciler) Apply(ctx context.Context, rec normalize.PaymentRecord, batchID string) (Result, error) {
	var res Result
	if rec.IsUnknown(schema.AccountNumber) {
		return res, fmt.Errorf("account number missing: %w", ErrAccountNotFound)
	}
	number := rec.AccountNumber()
	res.AccountNumber = number

	amount, defaulted, err := r.paymentAmount(rec)
	if err != nil {
		return res, err
	}
	res.Amount = amount
	res.DefaultApplied = defaulted
	res.PaymentDate = r.paymentDate(rec)

	unlock := r.locks.Lock(number)
	defer unlock()

	var updated *Account
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		acct, err := r.store.FindAccountByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return res, fmt.Errorf("account %s: %w", number, ErrAccountNotFound)
			}
			return res, fmt.Errorf("load account %s: %w", number, err)
		}
		res.AccountID = acct.ID
		res.BalanceBefore = acct.Balance
		res.BalanceAfter = FloorBalance(acct.Balance, amount)

		updated, err = r.store.UpdatePayment(ctx, PaymentUpdate{
			AccountID:       acct.ID,
			ExpectedVersion: acct.Version,
			Balance:         res.BalanceAfter,
			Amount:          amount,
			PaymentDate:     res.PaymentDate,
			UpdatedAt:       r.now().UTC(),
		})
		if errors.Is(err, ErrVersionConflict) && attempt < r.cfg.MaxConflictRetries {
			log.Printf("[WARN] version conflict on account %s, retrying (%d)", number, attempt+1)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("update account %s: %w", number, err)
		}
		break
	}

	entry := HistoryEntry{
		ID:            uuid.NewString(),
		AccountID:     updated.ID,
		AccountNumber: number,
		Amount:        amount,
		PaymentDate:   res.PaymentDate,
		BatchID:       batchID,
		SourceRow:     rec.Row,
		BalanceBefore: res.BalanceBefore,
		BalanceAfter:  res.BalanceAfter,
		CreatedAt:     r.now().UTC(),
	}
	if err := r.store.AppendHistory(ctx, entry); err != nil {
		log.Printf("[WARN] payment history not recorded for account %s row %d: %v", number, rec.Row, err)
		res.HistoryErr = err
	}

	if r.events != nil {
		amt := amount
		r.events.Publish(ctx, notification.Event{
			Type:          notification.PaymentApplied,
			AccountID:     updated.ID,
			AccountNumber: number,
			Amount:        &amt,
			Date:          res.PaymentDate.Format(normalize.DisplayDateFormat),
			BatchID:       batchID,
		})
	}
	return res, nil
}

func (r *Reconciler) paymentAmount(rec normalize.PaymentRecord) (decimal.Decimal, bool, error) {
	amt, ok := rec.Amount(schema.LastPaymentAmount)
	if ok && !amt.IsZero() {
		return amt.Abs(), false, nil
	}
	if r.cfg.ApplyDefaultAmount {
		return r.cfg.DefaultAmount.Abs(), true, nil
	}
	return decimal.Zero, false, ErrMissingAmount
}

func (r *Reconciler) paymentDate(rec normalize.PaymentRecord) time.Time {
	if d, ok := rec.Date(schema.LastPaymentDate); ok {
		return d
	}
	y, m, d := r.now().In(r.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FloorBalance subtracts a payment and never goes below zero.
func FloorBalance(balance, amount decimal.Decimal) decimal.Decimal {
	nb := balance.Sub(amount)
	if nb.IsNegative() {
		return decimal.Zero
	}
	return nb
}
