package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"CollectRecon/internal/batch"
)

// BatchStore implements batch.Store.
type BatchStore struct {
	*DB
}

func (d *DB) Batches() *BatchStore { return &BatchStore{d} }

const batchColumns = `id, file_name, mime_type, file_size, fingerprint, status,
	total_records, valid_records, invalid_records, error_count, warning_count,
	applied_count, failed_count, error_message, errors, created_by,
	created_at, started_at, completed_at, duration_ms`

func (s *BatchStore) CreateBatch(ctx context.Context, b *batch.FileBatch) error {
	errs, err := encodeErrors(b.Errors)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO file_batches (`+batchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.FileName, b.MimeType, b.FileSize, b.Fingerprint, string(b.Status),
		b.TotalRecords, b.ValidRecords, b.InvalidRecords, b.ErrorCount, b.WarningCount,
		b.AppliedCount, b.FailedCount, b.ErrorMessage, errs, b.CreatedBy,
		s.timeArg(b.CreatedAt), s.optTimeArg(b.StartedAt), s.optTimeArg(b.CompletedAt), b.DurationMs)
	if err != nil {
		if isUniqueViolation(err) {
			return &batch.DuplicateError{Fingerprint: b.Fingerprint}
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *BatchStore) UpdateBatch(ctx context.Context, b *batch.FileBatch) error {
	errs, err := encodeErrors(b.Errors)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE file_batches SET
		status = ?, total_records = ?, valid_records = ?, invalid_records = ?,
		error_count = ?, warning_count = ?, applied_count = ?, failed_count = ?,
		error_message = ?, errors = ?, started_at = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`,
		string(b.Status), b.TotalRecords, b.ValidRecords, b.InvalidRecords,
		b.ErrorCount, b.WarningCount, b.AppliedCount, b.FailedCount,
		b.ErrorMessage, errs, s.optTimeArg(b.StartedAt), s.optTimeArg(b.CompletedAt), b.DurationMs,
		b.ID)
	if err != nil {
		return fmt.Errorf("update batch %s: %w", b.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return batch.ErrNotFound
	}
	return nil
}

func (s *BatchStore) GetBatch(ctx context.Context, id string) (*batch.FileBatch, error) {
	row := s.queryRow(ctx, `SELECT `+batchColumns+` FROM file_batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, batch.ErrNotFound
	}
	return b, err
}

func (s *BatchStore) ListBatches(ctx context.Context, limit, offset int) ([]batch.FileBatch, int, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM file_batches`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	if limit <= 0 {
		limit = total
	}
	rows, err := s.query(ctx, `SELECT `+batchColumns+` FROM file_batches
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	out := []batch.FileBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *b)
	}
	return out, total, rows.Err()
}

func (s *BatchStore) BatchIDByFingerprint(ctx context.Context, fp string) (string, bool, error) {
	var id string
	err := s.queryRow(ctx, `SELECT id FROM file_batches WHERE fingerprint = ?`, fp).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row scanner) (*batch.FileBatch, error) {
	var (
		b                           batch.FileBatch
		status, errs                string
		created, started, completed flexTime
	)
	err := row.Scan(&b.ID, &b.FileName, &b.MimeType, &b.FileSize, &b.Fingerprint, &status,
		&b.TotalRecords, &b.ValidRecords, &b.InvalidRecords, &b.ErrorCount, &b.WarningCount,
		&b.AppliedCount, &b.FailedCount, &b.ErrorMessage, &errs, &b.CreatedBy,
		&created, &started, &completed, &b.DurationMs)
	if err != nil {
		return nil, err
	}
	b.Status = batch.Status(status)
	b.CreatedAt = created.Time.UTC()
	b.StartedAt = started.ptr()
	b.CompletedAt = completed.ptr()
	if errs != "" {
		if err := json.Unmarshal([]byte(errs), &b.Errors); err != nil {
			return nil, fmt.Errorf("decode batch errors: %w", err)
		}
	}
	return &b, nil
}

func encodeErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
