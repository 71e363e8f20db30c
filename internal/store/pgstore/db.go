// Package pgstore keeps the ledger, arrangements and activity log in
// Postgres through a pgx pool, and owns the Postgres schema.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS file_batches (
		id              TEXT PRIMARY KEY,
		file_name       TEXT NOT NULL,
		mime_type       TEXT NOT NULL DEFAULT '',
		file_size       BIGINT NOT NULL DEFAULT 0,
		fingerprint     TEXT NOT NULL,
		status          TEXT NOT NULL,
		total_records   INTEGER NOT NULL DEFAULT 0,
		valid_records   INTEGER NOT NULL DEFAULT 0,
		invalid_records INTEGER NOT NULL DEFAULT 0,
		error_count     INTEGER NOT NULL DEFAULT 0,
		warning_count   INTEGER NOT NULL DEFAULT 0,
		applied_count   INTEGER NOT NULL DEFAULT 0,
		failed_count    INTEGER NOT NULL DEFAULT 0,
		error_message   TEXT NOT NULL DEFAULT '',
		errors          JSONB NOT NULL DEFAULT '[]',
		created_by      TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at      TIMESTAMPTZ,
		completed_at    TIMESTAMPTZ,
		duration_ms     BIGINT NOT NULL DEFAULT 0,
		CONSTRAINT uniq_file_hash UNIQUE (fingerprint)
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id                  TEXT PRIMARY KEY,
		account_number      TEXT NOT NULL UNIQUE,
		holder_name         TEXT NOT NULL DEFAULT '',
		balance             NUMERIC(18,2) NOT NULL DEFAULT 0,
		last_payment_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		last_payment_date   DATE,
		version             BIGINT NOT NULL DEFAULT 1,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS payment_history (
		id             TEXT PRIMARY KEY,
		account_id     TEXT NOT NULL REFERENCES accounts(id),
		account_number TEXT NOT NULL,
		amount         NUMERIC(18,2) NOT NULL,
		payment_date   DATE NOT NULL,
		batch_id       TEXT NOT NULL,
		source_row     INTEGER NOT NULL,
		balance_before NUMERIC(18,2) NOT NULL,
		balance_after  NUMERIC(18,2) NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_account ON payment_history(account_number, created_at)`,
	`CREATE TABLE IF NOT EXISTS arrangements (
		id             TEXT PRIMARY KEY,
		account_id     TEXT NOT NULL REFERENCES accounts(id),
		account_number TEXT NOT NULL,
		amount         NUMERIC(18,2) NOT NULL,
		promised_date  DATE NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('pending', 'paid', 'defaulted')),
		created_by     TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		resolved_by    TEXT NOT NULL DEFAULT '',
		resolved_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_arrangements_due ON arrangements(status, promised_date, id)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id             BIGSERIAL PRIMARY KEY,
		event_type     TEXT NOT NULL,
		account_id     TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL DEFAULT '',
		amount         NUMERIC(18,2),
		event_date     TEXT NOT NULL DEFAULT '',
		batch_id       TEXT NOT NULL DEFAULT '',
		arrangement_id TEXT NOT NULL DEFAULT '',
		actor          TEXT NOT NULL DEFAULT '',
		occurred_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_recent ON activities(occurred_at DESC, id DESC)`,
}

// EnsureSchema creates every table the server uses in one round trip.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, stmt := range schemaStatements {
		batch.Queue(stmt)
	}
	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("schema statement %d (%s): %w", i+1, tableOf(schemaStatements[i]), err)
		}
	}
	log.Printf("[INFO] postgres schema ready (%d statements)", batch.Len())
	return nil
}

// tableOf names the object a DDL statement creates, for error messages.
func tableOf(stmt string) string {
	fields := strings.Fields(stmt)
	for i, f := range fields {
		if strings.EqualFold(f, "EXISTS") && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], "(")
		}
	}
	return "?"
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// civil drops the zone pgx attaches to DATE columns.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
