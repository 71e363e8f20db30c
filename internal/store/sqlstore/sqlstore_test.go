package sqlstore

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/batch"
	"CollectRecon/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "collections.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	pg := Wrap(nil, Postgres)
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	lite := Wrap(nil, SQLite)
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestLedgerStoreCAS(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Ledger()

	acct, err := store.UpsertAccount(ctx, ledger.Account{AccountNumber: " A1 ", HolderName: "Jane", Balance: decimal.RequireFromString("500.50")})
	require.NoError(t, err)
	assert.Equal(t, "A1", acct.AccountNumber)
	assert.Equal(t, int64(1), acct.Version)
	assert.Nil(t, acct.LastPaymentDate)

	paid := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	updated, err := store.UpdatePayment(ctx, ledger.PaymentUpdate{
		AccountID: acct.ID, ExpectedVersion: 1,
		Balance: decimal.RequireFromString("350.50"), Amount: decimal.RequireFromString("150"),
		PaymentDate: paid, UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, decimal.RequireFromString("350.50").Equal(updated.Balance))
	require.NotNil(t, updated.LastPaymentDate)
	assert.Equal(t, paid, *updated.LastPaymentDate)

	_, err = store.UpdatePayment(ctx, ledger.PaymentUpdate{AccountID: acct.ID, ExpectedVersion: 1, PaymentDate: paid})
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)

	_, err = store.UpdatePayment(ctx, ledger.PaymentUpdate{AccountID: "missing", ExpectedVersion: 1, PaymentDate: paid})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = store.FindAccountByNumber(ctx, "NOPE")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	again, err := store.UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", HolderName: "Jane Doe", Balance: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, acct.ID, again.ID)
	assert.Equal(t, int64(3), again.Version)
	assert.Equal(t, "Jane Doe", again.HolderName)
}

func TestBatchStoreRoundTripAndDuplicates(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Batches()
	fp := strings.Repeat("0f", 32)

	now := time.Now().UTC()
	b := &batch.FileBatch{ID: "b1", FileName: "p.csv", MimeType: "text/csv", FileSize: 42, Fingerprint: fp, Status: batch.StatusPending, CreatedAt: now}
	require.NoError(t, store.CreateBatch(ctx, b))

	err := store.CreateBatch(ctx, &batch.FileBatch{ID: "b2", FileName: "again.csv", Fingerprint: fp, Status: batch.StatusPending, CreatedAt: now})
	assert.ErrorIs(t, err, batch.ErrDuplicateFile)

	id, found, err := store.BatchIDByFingerprint(ctx, fp)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b1", id)

	_, found, err = store.BatchIDByFingerprint(ctx, strings.Repeat("1f", 32))
	require.NoError(t, err)
	assert.False(t, found)

	done := now.Add(time.Second)
	b.Status = batch.StatusCompleted
	b.TotalRecords, b.ValidRecords, b.AppliedCount = 3, 3, 2
	b.Errors = []string{"row 4: account NOPE: account not found"}
	b.StartedAt, b.CompletedAt, b.DurationMs = &now, &done, 1000
	require.NoError(t, store.UpdateBatch(ctx, b))

	got, err := store.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.AppliedCount)
	assert.Equal(t, b.Errors, got.Errors)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, done, *got.CompletedAt, time.Millisecond)

	_, err = store.GetBatch(ctx, "missing")
	assert.ErrorIs(t, err, batch.ErrNotFound)
	assert.ErrorIs(t, store.UpdateBatch(ctx, &batch.FileBatch{ID: "missing"}), batch.ErrNotFound)

	list, total, err := store.ListBatches(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
}

func TestArrangementStoreClaim(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	acct, err := db.Ledger().UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	svc := arrangement.NewService(db.Arrangements(), db.Ledger(), nil, arrangement.Config{PageSize: 2, MaxConcurrent: 2, Location: time.UTC})
	var ids []string
	for i := 0; i < 3; i++ {
		a, err := svc.Create(ctx, arrangement.CreateRequest{
			AccountNumber: "A1", Amount: decimal.NewFromInt(25),
			PromisedDate: time.Date(2024, 1, 10+i, 0, 0, 0, 0, time.UTC), CreatedBy: "agent",
		})
		require.NoError(t, err)
		assert.Equal(t, acct.ID, a.AccountID)
		ids = append(ids, a.ID)
	}

	_, err = svc.ConfirmPaid(ctx, ids[0], "agent")
	require.NoError(t, err)

	res, err := svc.Sweep(ctx, time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)

	res, err = svc.Sweep(ctx, time.Date(2024, 1, 12, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, res.Transitioned)

	got, err := svc.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, arrangement.StatusDefaulted, got.Status)
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), got.PromisedDate)

	got, err = svc.Get(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, arrangement.StatusPending, got.Status)

	list, err := svc.ListByAccount(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = db.Arrangements().Transition(ctx, "missing", arrangement.StatusPaid, "x", time.Now())
	assert.ErrorIs(t, err, arrangement.ErrNotFound)
}

func TestIngestAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.Ledger().UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", Balance: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	rec := ledger.NewReconciler(db.Ledger(), nil, nil, ledger.DefaultConfig())
	orch := batch.NewOrchestrator(db.Batches(), rec, batch.DefaultConfig())
	body := []byte("Acc No,Last Payment Amount,Last Payment Date\nA1,-150.00,20240115\nNOPE,5,20240115\n")

	b, err := orch.Ingest(ctx, batch.Submission{FileName: "p.csv", Content: bytes.NewReader(body)})
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, b.Status)
	assert.Equal(t, 1, b.AppliedCount)
	assert.Equal(t, 1, b.FailedCount)

	_, err = orch.Ingest(ctx, batch.Submission{FileName: "p.csv", Content: bytes.NewReader(body)})
	assert.ErrorIs(t, err, batch.ErrDuplicateFile)

	acct, err := db.Ledger().FindAccountByNumber(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("850").Equal(acct.Balance))

	hist, err := db.Ledger().ListHistory(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, b.ID, hist[0].BatchID)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), hist[0].PaymentDate)
}
