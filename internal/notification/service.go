package notification

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	PaymentApplied       EventType = "payment_applied"
	ArrangementCreated   EventType = "arrangement_created"
	ArrangementPaid      EventType = "arrangement_paid"
	ArrangementDefaulted EventType = "arrangement_defaulted"
)

// Event is one activity record. Unused fields stay at their zero value.
type Event struct {
	Type          EventType        `json:"type"`
	AccountID     string           `json:"account_id,omitempty"`
	AccountNumber string           `json:"account_number,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Date          string           `json:"date,omitempty"`
	BatchID       string           `json:"batch_id,omitempty"`
	ArrangementID string           `json:"arrangement_id,omitempty"`
	Actor         string           `json:"actor,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

type Subscriber interface {
	Notify(ctx context.Context, ev Event) error
}

type SubscriberFunc func(ctx context.Context, ev Event) error

func (f SubscriberFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

const defaultKeep = 200

// NotificationService fans events out to subscribers and keeps the most
// recent ones in memory. Delivery is best-effort: subscriber errors are
// logged and never returned to the publisher.
type NotificationService struct {
	mu          sync.Mutex
	subscribers []Subscriber
	recent      []Event
	keep        int
}

func NewNotificationService(keep int) *NotificationService {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &NotificationService{
		recent: make([]Event, 0, keep),
		keep:   keep,
	}
}

func (ns *NotificationService) Subscribe(s Subscriber) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.subscribers = append(ns.subscribers, s)
}

func (ns *NotificationService) Publish(ctx context.Context, ev Event) {
	if ns == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	ns.mu.Lock()
	if len(ns.recent) == ns.keep {
		copy(ns.recent, ns.recent[1:])
		ns.recent = ns.recent[:ns.keep-1]
	}
	ns.recent = append(ns.recent, ev)
	subs := append([]Subscriber(nil), ns.subscribers...)
	ns.mu.Unlock()

	for _, s := range subs {
		if err := notifySafely(ctx, s, ev); err != nil {
			log.Printf("[WARN] activity subscriber failed for %s: %v", ev.Type, err)
		}
	}
}

func notifySafely(ctx context.Context, s Subscriber, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] activity subscriber panic: %v", r)
		}
	}()
	return s.Notify(ctx, ev)
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (ns *NotificationService) Recent(limit int) []Event {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	n := len(ns.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, ns.recent[i])
	}
	return out
}

func (ns *NotificationService) Clear() {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.recent = ns.recent[:0]
}

// RecentActivity adapts Recent to the feed interface the HTTP layer reads.
func (ns *NotificationService) RecentActivity(_ context.Context, limit int) ([]Event, error) {
	return ns.Recent(limit), nil
}
