package notification

import (
	"context"
	"fmt"
	"strings"

	"CollectRecon/internal/logger"
)

// AuditSubscriber writes every event as an [AUDIT] line.
type AuditSubscriber struct{}

func (AuditSubscriber) Notify(_ context.Context, ev Event) error {
	logger.Audit("%s", Describe(ev))
	return nil
}

// Describe renders an event as a single log-friendly line.
func Describe(ev Event) string {
	parts := []string{string(ev.Type)}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	add("account", ev.AccountNumber)
	add("account_id", ev.AccountID)
	if ev.Amount != nil {
		add("amount", ev.Amount.StringFixed(2))
	}
	add("date", ev.Date)
	add("batch", ev.BatchID)
	add("arrangement", ev.ArrangementID)
	add("by", ev.Actor)
	return strings.Join(parts, " ")
}
