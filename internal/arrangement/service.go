package arrangement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"CollectRecon/internal/config"
	"CollectRecon/internal/ledger"
	"CollectRecon/internal/normalize"
	"CollectRecon/internal/notification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountLookup resolves the account an arrangement is made against.
type AccountLookup interface {
	FindAccountByNumber(ctx context.Context, number string) (*ledger.Account, error)
}

type Config struct {
	PageSize      int
	MaxConcurrent int
	Location      *time.Location
}

func DefaultConfig() Config {
	loc, err := time.LoadLocation(config.DefaultTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return Config{PageSize: config.SweepBatchSize, MaxConcurrent: config.SweepMaxConcurrent, Location: loc}
}

type CreateRequest struct {
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	PromisedDate  time.Time       `json:"promised_date"`
	CreatedBy     string          `json:"created_by"`
}

type SweepResult struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Failed       int `json:"failed"`
}

type Service struct {
	store    Store
	accounts AccountLookup
	events   ledger.Publisher
	cfg      Config
	now      func() time.Time
}

func NewService(store Store, accounts AccountLookup, events ledger.Publisher, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = config.SweepBatchSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: store, accounts: accounts, events: events, cfg: cfg, now: time.Now}
}

// WithPageSize returns a copy of the service that sweeps n arrangements per
// page.
func (s *Service) WithPageSize(n int) *Service {
	c := *s
	if n > 0 {
		c.cfg.PageSize = n
	}
	return &c
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Arrangement, error) {
	number := strings.TrimSpace(req.AccountNumber)
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.PromisedDate.IsZero() {
		return nil, ErrInvalidDate
	}
	acct, err := s.accounts.FindAccountByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("arrangement for %s: %w", number, err)
	}

	a := &Arrangement{
		ID:            uuid.NewString(),
		AccountID:     acct.ID,
		AccountNumber: acct.AccountNumber,
		Amount:        req.Amount,
		PromisedDate:  civilDate(req.PromisedDate),
		Status:        StatusPending,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create arrangement: %w", err)
	}
	s.publish(ctx, notification.ArrangementCreated, a, req.CreatedBy)
	return a, nil
}

// ConfirmPaid resolves a pending arrangement as paid.
func (s *Service) ConfirmPaid(ctx context.Context, id, actor string) (*Arrangement, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return a, fmt.Errorf("%w: %s is %s", ErrTerminal, a.ID, a.Status)
	}
	claimed, err := s.store.Transition(ctx, id, StatusPaid, actor, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("confirm arrangement %s: %w", id, err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, id)
	}
	a, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notification.ArrangementPaid, a, actor)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Arrangement, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByAccount(ctx context.Context, accountNumber string) ([]Arrangement, error) {
	return s.store.ListByAccount(ctx, strings.TrimSpace(accountNumber))
}

// Sweep defaults every pending arrangement promised before today's date in
// the configured location. A failure on one arrangement is counted and the
// sweep moves on.
func (s *Service) Sweep(ctx context.Context, today time.Time) (SweepResult, error) {
	var res SweepResult
	cutoff := s.Today(today)
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := s.store.ListOverdue(ctx, cutoff, cursor, s.cfg.PageSize)
		if err != nil {
			return res, fmt.Errorf("list overdue arrangements: %w", err)
		}
		if len(page) == 0 {
			break
		}
		res.Scanned += len(page)

		var (
			mu  sync.Mutex
			wg  sync.WaitGroup
			sem = make(chan struct{}, s.cfg.MaxConcurrent)
		)
		for _, a := range page {
			wg.Add(1)
			go func(a Arrangement) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				claimed, err := s.defaultOne(ctx, a)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					log.Printf("[SWEEP] failed to default arrangement %s: %v", a.ID, err)
					res.Failed++
				case claimed:
					res.Transitioned++
				}
			}(a)
		}
		wg.Wait()

		cursor = page[len(page)-1].ID
		if len(page) < s.cfg.PageSize {
			break
		}
	}

	log.Printf("[SWEEP] arrangements scanned=%d defaulted=%d failed=%d", res.Scanned, res.Transitioned, res.Failed)
	return res, nil
}

func (s *Service) defaultOne(ctx context.Context, a Arrangement) (claimed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	claimed, err = s.store.Transition(ctx, a.ID, StatusDefaulted, SystemActor, s.now().UTC())
	if err != nil || !claimed {
		return claimed, err
	}
	a.Status = StatusDefaulted
	s.publish(ctx, notification.ArrangementDefaulted, &a, SystemActor)
	return true, nil
}

// Today is the civil date of t in the configured location.
func (s *Service) Today(t time.Time) time.Time {
	y, m, d := t.In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) publish(ctx context.Context, typ notification.EventType, a *Arrangement, actor string) {
	if s.events == nil {
		return
	}
	amt := a.Amount
	s.events.Publish(ctx, notification.Event{
		Type:          typ,
		AccountID:     a.AccountID,
		AccountNumber: a.AccountNumber,
		Amount:        &amt,
		Date:          a.PromisedDate.Format(normalize.DisplayDateFormat),
		ArrangementID: a.ID,
		Actor:         actor,
	})
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsNotFound reports whether err means the arrangement or its account
// does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ledger.ErrAccountNotFound)
}
