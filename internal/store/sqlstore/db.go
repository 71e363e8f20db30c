// Package sqlstore persists batches, accounts and arrangements through
// database/sql. SQLite (modernc) backs the operator CLI; Postgres (lib/pq)
// backs the server's batch table.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const (
	dateLayout = "2006-01-02"
	// fixed width so text timestamps sort chronologically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type DB struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects with the named driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*DB, error) {
	d := Dialect(driver)
	if d != Postgres && d != SQLite {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d == SQLite {
		// one writer at a time; concurrent connections only produce SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db, dialect: d}, nil
}

// OpenSQLite opens (or creates) a database file and its schema.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	d, err := Open(string(SQLite), "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if err := d.EnsureSchema(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Wrap uses an existing handle, e.g. the server's lib/pq connection.
func Wrap(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Dialect() Dialect { return d.dialect }

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS file_batches (
	id              TEXT PRIMARY KEY,
	file_name       TEXT NOT NULL,
	mime_type       TEXT NOT NULL DEFAULT '',
	file_size       INTEGER NOT NULL DEFAULT 0,
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
	errors          TEXT NOT NULL DEFAULT '[]',
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	started_at      TEXT,
	completed_at    TEXT,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	CONSTRAINT uniq_file_hash UNIQUE (fingerprint)
);
CREATE TABLE IF NOT EXISTS accounts (
	id                  TEXT PRIMARY KEY,
	account_number      TEXT NOT NULL UNIQUE,
	holder_name         TEXT NOT NULL DEFAULT '',
	balance             TEXT NOT NULL DEFAULT '0',
	last_payment_amount TEXT NOT NULL DEFAULT '0',
	last_payment_date   TEXT,
	version             INTEGER NOT NULL DEFAULT 1,
	updated_at          TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS payment_history (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	account_number TEXT NOT NULL,
	amount         TEXT NOT NULL,
	payment_date   TEXT NOT NULL,
	batch_id       TEXT NOT NULL,
	source_row     INTEGER NOT NULL,
	balance_before TEXT NOT NULL,
	balance_after  TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_account ON payment_history(account_number, created_at);
CREATE TABLE IF NOT EXISTS arrangements (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	account_number TEXT NOT NULL,
	amount         TEXT NOT NULL,
	promised_date  TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_by     TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	resolved_by    TEXT NOT NULL DEFAULT '',
	resolved_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_arrangements_due ON arrangements(status, promised_date, id);
`

// EnsureSchema creates the SQLite tables. Postgres tables are owned by
// pgstore.EnsureSchema.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if d.dialect != SQLite {
		return nil
	}
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return d.db.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.db.QueryRowContext(ctx, d.rebind(query), args...)
}

func (d *DB) timeArg(t time.Time) interface{} {
	if d.dialect == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(timeLayout)
}

func (d *DB) optTimeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return d.timeArg(*t)
}

// isUniqueViolation recognises a unique-constraint failure from either
// driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// flexTime scans timestamps and dates whether the driver hands back
// time.Time or text.
type flexTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	dateLayout,
}

func (f *flexTime) Scan(src interface{}) error {
	f.Valid = false
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		f.Time, f.Valid = v, true
		return nil
	case []byte:
		return f.parse(string(v))
	case string:
		return f.parse(v)
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (f *flexTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time, f.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("unrecognised time %q", s)
}

func (f flexTime) ptr() *time.Time {
	if !f.Valid {
		return nil
	}
	t := f.Time.UTC()
	return &t
}

// civil drops any time and zone so DATE values compare as calendar days.
func (f flexTime) civil() time.Time {
	y, m, d := f.Time.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
