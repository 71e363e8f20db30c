package pgstore

import (
	"context"
	"fmt"

	"CollectRecon/internal/notification"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ActivityLog persists published events so the activity feed survives a
// restart. Register it on the notification service with Subscribe.
type ActivityLog struct {
	pool *pgxpool.Pool
}

func NewActivityLog(pool *pgxpool.Pool) *ActivityLog {
	return &ActivityLog{pool: pool}
}

func (l *ActivityLog) Notify(ctx context.Context, ev notification.Event) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO activities
			(event_type, account_id, account_number, amount, event_date, batch_id, arrangement_id, actor, occurred_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)`,
		string(ev.Type), ev.AccountID, ev.AccountNumber, amountArg(ev.Amount), ev.Date,
		ev.BatchID, ev.ArrangementID, ev.Actor, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("record activity %s: %w", ev.Type, err)
	}
	return nil
}

// RecentActivity returns up to limit events, newest first.
func (l *ActivityLog) RecentActivity(ctx context.Context, limit int) ([]notification.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `
		SELECT event_type, account_id, account_number, amount::text, event_date,
			batch_id, arrangement_id, actor, occurred_at
		FROM activities
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := []notification.Event{}
	for rows.Next() {
		var (
			ev     notification.Event
			typ    string
			amount *string
		)
		if err := rows.Scan(&typ, &ev.AccountID, &ev.AccountNumber, &amount, &ev.Date,
			&ev.BatchID, &ev.ArrangementID, &ev.Actor, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.Type = notification.EventType(typ)
		ev.Amount = parseAmount(amount)
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func amountArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func parseAmount(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
