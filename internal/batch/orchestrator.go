package batch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"CollectRecon/internal/checksum"
	"CollectRecon/internal/config"
	"CollectRecon/internal/ledger"
	"CollectRecon/internal/logger"
	"CollectRecon/internal/normalize"
	"CollectRecon/internal/schema"
	"CollectRecon/internal/tabular"
	"CollectRecon/internal/validation"

	"github.com/google/uuid"
)

// Applier posts one valid record to the ledger. *ledger.Reconciler
// satisfies it.
type Applier interface {
	Apply(ctx context.Context, rec normalize.PaymentRecord, batchID string) (ledger.Result, error)
}

type Config struct {
	Workers           int
	MaxReportedErrors int
	Delimiter         rune
}

func DefaultConfig() Config {
	return Config{
		Workers:           config.DefaultWorkers,
		MaxReportedErrors: config.MaxReportedErrors,
	}
}

type Orchestrator struct {
	store   Store
	applier Applier
	dedup   *checksum.Service
	cfg     Config
	now     func() time.Time

	// normalize turns a raw row into a record; replaced in tests.
	normalize func(tabular.RawRow, []schema.Field) normalize.PaymentRecord
}

func NewOrchestrator(store Store, applier Applier, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxReportedErrors <= 0 {
		cfg.MaxReportedErrors = config.MaxReportedErrors
	}
	return &Orchestrator{
		store:     store,
		applier:   applier,
		dedup:     checksum.NewService(store),
		cfg:       cfg,
		now:       time.Now,
		normalize: normalize.Normalize,
	}
}

// Submit records a pending batch once the fingerprint has cleared the
// duplicate gate.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*FileBatch, error) {
	fp := sub.Fingerprint
	if fp == "" {
		if sub.Content == nil {
			return nil, errors.New("submission has no content")
		}
		sum, n, err := checksum.FingerprintReader(sub.Content)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", sub.FileName, err)
		}
		if _, err := sub.Content.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind %s: %w", sub.FileName, err)
		}
		fp = sum
		if sub.Size == 0 {
			sub.Size = n
		}
	}

	check, err := o.CheckDuplicate(ctx, fp)
	if err != nil {
		return nil, err
	}
	if check.Exists {
		log.Printf("[BATCH] rejected duplicate upload %s (batch %s)", sub.FileName, check.ExistingBatchID)
		return nil, &DuplicateError{Fingerprint: fp, ExistingBatchID: check.ExistingBatchID}
	}

	b := &FileBatch{
		ID:          uuid.NewString(),
		FileName:    sub.FileName,
		MimeType:    sub.MimeType,
		FileSize:    sub.Size,
		Fingerprint: fp,
		Status:      StatusPending,
		CreatedBy:   sub.CreatedBy,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.store.CreateBatch(ctx, b); err != nil {
		if !errors.Is(err, ErrDuplicateFile) {
			return nil, fmt.Errorf("create batch: %w", err)
		}
		// Lost the race against a concurrent upload of the same bytes.
		var de *DuplicateError
		if errors.As(err, &de) && de.ExistingBatchID != "" {
			return nil, de
		}
		id, _, _ := o.store.BatchIDByFingerprint(ctx, fp)
		return nil, &DuplicateError{Fingerprint: fp, ExistingBatchID: id}
	}
	log.Printf("[BATCH] accepted %s as batch %s", b.FileName, b.ID)
	return b, nil
}

// Process runs a pending batch to a terminal state. A pipeline-level error
// marks the batch failed and is also returned.
func (o *Orchestrator) Process(ctx context.Context, batchID string, content io.ReadSeeker, format tabular.Format) (*FileBatch, error) {
	b, err := o.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return b, fmt.Errorf("%w: %s is %s", ErrNotPending, b.ID, b.Status)
	}

	start := o.now().UTC()
	b.Status = StatusProcessing
	b.StartedAt = &start
	if err := o.store.UpdateBatch(ctx, b); err != nil {
		return b, fmt.Errorf("mark batch %s processing: %w", b.ID, err)
	}

	runErr := o.safeRun(ctx, b, content, format)

	end := o.now().UTC()
	b.CompletedAt = &end
	b.DurationMs = end.Sub(start).Milliseconds()
	if runErr != nil {
		b.Status = StatusFailed
		b.ErrorMessage = runErr.Error()
		log.Printf("[ERROR] batch %s failed: %v", b.ID, runErr)
	} else {
		b.Status = StatusCompleted
		log.Printf("[BATCH] %s completed: total=%d valid=%d invalid=%d applied=%d failed=%d in %dms",
			b.ID, b.TotalRecords, b.ValidRecords, b.InvalidRecords, b.AppliedCount, b.FailedCount, b.DurationMs)
	}
	logger.Audit("batch %s %s file=%s applied=%d failed=%d", b.ID, b.Status, b.FileName, b.AppliedCount, b.FailedCount)

	if err := o.store.UpdateBatch(context.WithoutCancel(ctx), b); err != nil {
		return b, fmt.Errorf("persist batch %s result: %w", b.ID, err)
	}
	if runErr != nil {
		return b, fmt.Errorf("batch %s failed: %w", b.ID, runErr)
	}
	return b, nil
}

// Ingest is Submit followed by Process on the same content.
func (o *Orchestrator) Ingest(ctx context.Context, sub Submission) (*FileBatch, error) {
	format, err := tabular.DetectFormat(sub.FileName, sub.MimeType)
	if err != nil {
		return nil, err
	}
	b, err := o.Submit(ctx, sub)
	if err != nil {
		return nil, err
	}
	if _, err := sub.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", sub.FileName, err)
	}
	return o.Process(ctx, b.ID, sub.Content, format)
}

func (o *Orchestrator) Get(ctx context.Context, id string) (*FileBatch, error) {
	return o.store.GetBatch(ctx, id)
}

func (o *Orchestrator) List(ctx context.Context, limit, offset int) ([]FileBatch, int, error) {
	return o.store.ListBatches(ctx, limit, offset)
}

func (o *Orchestrator) CheckDuplicate(ctx context.Context, fingerprint string) (checksum.DuplicateCheck, error) {
	return o.dedup.Check(ctx, fingerprint)
}

type rowError struct {
	row int
	msg string
}

type tally struct {
	mu          sync.Mutex
	applied     int
	failed      int
	historyErrs int
	failures    []rowError
}

func (o *Orchestrator) run(ctx context.Context, b *FileBatch, content io.ReadSeeker, format tabular.Format) error {
	stream, err := tabular.Open(content, format, tabular.Options{Delimiter: o.cfg.Delimiter})
	if err != nil {
		return fmt.Errorf("parse %s: %w", b.FileName, err)
	}
	defer stream.Close()

	headers := stream.Header()
	fields := schema.MapHeaders(headers)
	b.WarningCount += len(normalize.DuplicateColumns(headers, fields))

	// Records for one account always land on the same shard, so they are
	// applied in file order.
	t := &tally{}
	shards := make([]chan normalize.PaymentRecord, o.cfg.Workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan normalize.PaymentRecord, 64)
		wg.Add(1)
		go func(in <-chan normalize.PaymentRecord) {
			defer wg.Done()
			for rec := range in {
				o.applyOne(ctx, b.ID, rec, t)
			}
		}(shards[i])
	}

	// workers are drained on every exit, panics included
	stopped := false
	stopWorkers := func() {
		if stopped {
			return
		}
		stopped = true
		for _, s := range shards {
			close(s)
		}
		wg.Wait()
	}
	defer stopWorkers()

	var invalid []rowError
	for stream.Next() {
		rec := o.normalize(stream.Row(), fields)
		ok, errs, warns := validation.ValidateRecord(rec)
		b.TotalRecords++
		b.ErrorCount += len(errs)
		b.WarningCount += len(warns)
		for _, e := range errs {
			if len(invalid) < o.cfg.MaxReportedErrors {
				invalid = append(invalid, rowError{row: e.Row, msg: e.String()})
			}
		}
		if !ok {
			b.InvalidRecords++
			continue
		}
		b.ValidRecords++
		shards[shardFor(rec.AccountNumber(), len(shards))] <- rec
	}
	stopWorkers()

	b.AppliedCount = t.applied
	b.FailedCount = t.failed
	b.ErrorCount += t.failed
	b.WarningCount += t.historyErrs
	b.Errors = firstErrors(o.cfg.MaxReportedErrors, invalid, t.failures)

	if err := stream.Err(); err != nil {
		return fmt.Errorf("read %s: %w", b.FileName, err)
	}
	return ctx.Err()
}

// safeRun turns a panic anywhere in the parse, map or normalize stages into
// a pipeline error so the batch still reaches a terminal state.
func (o *Orchestrator) safeRun(ctx context.Context, b *FileBatch, content io.ReadSeeker, format tabular.Format) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] panic processing batch %s: %v", b.ID, r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return o.run(ctx, b, content, format)
}

func (o *Orchestrator) applyOne(ctx context.Context, batchID string, rec normalize.PaymentRecord, t *tally) {
	res, err := o.safeApply(ctx, rec, batchID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.failed++
		t.failures = append(t.failures, rowError{row: rec.Row, msg: fmt.Sprintf("row %d: %v", rec.Row, err)})
		return
	}
	t.applied++
	if res.HistoryErr != nil {
		t.historyErrs++
	}
}

func (o *Orchestrator) safeApply(ctx context.Context, rec normalize.PaymentRecord, batchID string) (res ledger.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] panic applying row %d of batch %s: %v", rec.Row, batchID, r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return o.applier.Apply(ctx, rec, batchID)
}

func shardFor(account string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(account))
	return int(h.Sum32() % uint32(n))
}

// firstErrors merges the error lists by row and keeps the first limit.
func firstErrors(limit int, lists ...[]rowError) []string {
	var all []rowError
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].row < all[j].row })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, 0, len(all))
	for _, e := range all {
		out = append(out, e.msg)
	}
	return out
}
