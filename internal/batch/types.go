package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

var (
	ErrDuplicateFile = errors.New("file already processed")
	ErrNotFound      = errors.New("batch not found")
	ErrNotPending    = errors.New("batch is not pending")
)

// DuplicateError carries the batch that already owns the fingerprint.
type DuplicateError struct {
	Fingerprint     string
	ExistingBatchID string
}

func (e *DuplicateError) Error() string {
	if e.ExistingBatchID == "" {
		return ErrDuplicateFile.Error()
	}
	return fmt.Sprintf("%s as batch %s", ErrDuplicateFile, e.ExistingBatchID)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateFile }

type FileBatch struct {
	ID             string     `json:"batch_id"`
	FileName       string     `json:"file_name"`
	MimeType       string     `json:"mime_type"`
	FileSize       int64      `json:"file_size"`
	Fingerprint    string     `json:"fingerprint"`
	Status         Status     `json:"status"`
	TotalRecords   int        `json:"records_count"`
	ValidRecords   int        `json:"valid_count"`
	InvalidRecords int        `json:"invalid_count"`
	ErrorCount     int        `json:"errors_count"`
	WarningCount   int        `json:"warnings_count"`
	AppliedCount   int        `json:"applied_count"`
	FailedCount    int        `json:"failed_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DurationMs     int64      `json:"duration_ms"`
}

// Submission describes an uploaded file. Fingerprint is computed from
// Content when left empty.
type Submission struct {
	FileName    string
	MimeType    string
	Size        int64
	Fingerprint string
	CreatedBy   string
	Content     io.ReadSeeker
}

type Store interface {
	// CreateBatch returns an error matching ErrDuplicateFile when the
	// fingerprint is already recorded.
	CreateBatch(ctx context.Context, b *FileBatch) error
	UpdateBatch(ctx context.Context, b *FileBatch) error
	GetBatch(ctx context.Context, id string) (*FileBatch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]FileBatch, int, error)
	BatchIDByFingerprint(ctx context.Context, fingerprint string) (string, bool, error)
}
