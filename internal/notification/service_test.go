package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func TestPublishFansOut(t *testing.T) {
	ns := NewNotificationService(10)
	a, b := &recorder{}, &recorder{}
	ns.Subscribe(a)
	ns.Subscribe(b)

	ns.Publish(context.Background(), Event{Type: PaymentApplied, AccountNumber: "A1"})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "A1", a.events[0].AccountNumber)
	assert.False(t, a.events[0].OccurredAt.IsZero())
}

func TestFailingSubscriberDoesNotBlockOthers(t *testing.T) {
	ns := NewNotificationService(10)
	ns.Subscribe(SubscriberFunc(func(context.Context, Event) error { return errors.New("boom") }))
	ns.Subscribe(SubscriberFunc(func(context.Context, Event) error { panic("bad subscriber") }))
	rec := &recorder{}
	ns.Subscribe(rec)

	ns.Publish(context.Background(), Event{Type: ArrangementPaid})
	assert.Len(t, rec.events, 1)
}

func TestRecentKeepsNewestFirst(t *testing.T) {
	ns := NewNotificationService(3)
	for _, n := range []string{"A1", "A2", "A3", "A4"} {
		ns.Publish(context.Background(), Event{Type: PaymentApplied, AccountNumber: n})
	}
	got := ns.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "A4", got[0].AccountNumber)
	assert.Equal(t, "A2", got[2].AccountNumber)

	assert.Len(t, ns.Recent(2), 2)

	ns.Clear()
	assert.Empty(t, ns.Recent(0))
}

func TestNilServicePublishIsNoop(t *testing.T) {
	var ns *NotificationService
	assert.NotPanics(t, func() { ns.Publish(context.Background(), Event{Type: PaymentApplied}) })
}

func TestDescribe(t *testing.T) {
	amt := decimal.RequireFromString("150")
	line := Describe(Event{Type: PaymentApplied, AccountNumber: "A1", Amount: &amt, Date: "2024/01/15", BatchID: "b1"})
	assert.Equal(t, "payment_applied account=A1 amount=150.00 date=2024/01/15 batch=b1", line)
}
