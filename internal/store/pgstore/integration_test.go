package pgstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/ledger"
	"CollectRecon/internal/notification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDSNEnv names a disposable Postgres database. Each test gets its own
// schema, dropped afterwards.
const testDSNEnv = "COLLECTRECON_TEST_DSN"

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()
	schema := "collectrecon_" + uuid.NewString()[:8]

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})
	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

func TestLedgerStoreVersionCAS(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	store := NewLedgerStore(pool)

	acct, err := store.UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", HolderName: "Jane", Balance: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	require.Equal(t, int64(1), acct.Version)

	paid := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	upd := ledger.PaymentUpdate{
		AccountID:       acct.ID,
		ExpectedVersion: 1,
		Balance:         decimal.RequireFromString("850.00"),
		Amount:          decimal.RequireFromString("150.00"),
		PaymentDate:     paid,
		UpdatedAt:       time.Now().UTC(),
	}
	got, err := store.UpdatePayment(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, decimal.RequireFromString("850").Equal(got.Balance))
	require.NotNil(t, got.LastPaymentDate)
	assert.Equal(t, paid, *got.LastPaymentDate)

	// a writer still holding version 1 loses
	upd.Balance = decimal.RequireFromString("700.00")
	_, err = store.UpdatePayment(ctx, upd)
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)

	upd.AccountID = "missing"
	_, err = store.UpdatePayment(ctx, upd)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	after, err := store.FindAccountByNumber(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("850").Equal(after.Balance))

	again, err := store.UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", HolderName: "Jane D", Balance: decimal.NewFromInt(900)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.Version)
	assert.Equal(t, acct.ID, again.ID)
}

func TestLedgerStoreHistory(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	store := NewLedgerStore(pool)

	acct, err := store.UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for row := 2; row <= 3; row++ {
		require.NoError(t, store.AppendHistory(ctx, ledger.HistoryEntry{
			AccountID:     acct.ID,
			AccountNumber: "A1",
			Amount:        decimal.NewFromInt(10),
			PaymentDate:   day,
			BatchID:       "b1",
			SourceRow:     row,
			BalanceBefore: decimal.NewFromInt(int64(120 - row*10)),
			BalanceAfter:  decimal.NewFromInt(int64(110 - row*10)),
			CreatedAt:     day.Add(time.Duration(row) * time.Second),
		}))
	}

	hist, err := store.ListHistory(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 2, hist[0].SourceRow)
	assert.Equal(t, 3, hist[1].SourceRow)
	assert.Equal(t, day, hist[0].PaymentDate)
	assert.Equal(t, "90.00", hist[0].BalanceAfter.StringFixed(2))

	none, err := store.ListHistory(ctx, "B2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func seedArrangement(t *testing.T, store *ArrangementStore, acct *ledger.Account, id string, due time.Time, status arrangement.Status) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &arrangement.Arrangement{
		ID:            id,
		AccountID:     acct.ID,
		AccountNumber: acct.AccountNumber,
		Amount:        decimal.NewFromInt(50),
		PromisedDate:  due,
		Status:        status,
		CreatedBy:     "tester",
		CreatedAt:     time.Now().UTC(),
	}))
}

func TestArrangementTransitionClaimsOnce(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	acct, err := NewLedgerStore(pool).UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)
	store := NewArrangementStore(pool)
	seedArrangement(t, store, acct, "arr-1", time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), arrangement.StatusPending)

	at := time.Now().UTC()
	claimed, err := store.Transition(ctx, "arr-1", arrangement.StatusDefaulted, arrangement.SystemActor, at)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Transition(ctx, "arr-1", arrangement.StatusPaid, "agent7", at)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = store.Transition(ctx, "missing", arrangement.StatusPaid, "agent7", at)
	assert.ErrorIs(t, err, arrangement.ErrNotFound)

	got, err := store.Get(ctx, "arr-1")
	require.NoError(t, err)
	assert.Equal(t, arrangement.StatusDefaulted, got.Status)
	assert.Equal(t, arrangement.SystemActor, got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)
}

func TestListOverduePagesByID(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	acct, err := NewLedgerStore(pool).UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)
	store := NewArrangementStore(pool)

	past := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	var want []string
	for i := 5; i >= 1; i-- {
		id := fmt.Sprintf("arr-%02d", i)
		seedArrangement(t, store, acct, id, past, arrangement.StatusPending)
		want = append(want, id)
	}
	sort.Strings(want)
	seedArrangement(t, store, acct, "arr-future", time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), arrangement.StatusPending)
	seedArrangement(t, store, acct, "arr-paid", past, arrangement.StatusPaid)

	cutoff := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	var got []string
	cursor := ""
	pages := 0
	for {
		page, err := store.ListOverdue(ctx, cutoff, cursor, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		pages++
		for _, a := range page {
			got = append(got, a.ID)
		}
		cursor = page[len(page)-1].ID
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 3, pages)
}

func TestSweepOverPostgres(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	accounts := NewLedgerStore(pool)
	acct, err := accounts.UpsertAccount(ctx, ledger.Account{AccountNumber: "A1", Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)
	store := NewArrangementStore(pool)
	for i := 0; i < 5; i++ {
		seedArrangement(t, store, acct, fmt.Sprintf("due-%d", i), time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), arrangement.StatusPending)
	}
	seedArrangement(t, store, acct, "later", time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), arrangement.StatusPending)

	hub := notification.NewNotificationService(0)
	activity := NewActivityLog(pool)
	hub.Subscribe(activity)
	svc := arrangement.NewService(store, accounts, hub, arrangement.Config{PageSize: 2, MaxConcurrent: 3, Location: time.UTC})

	today := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	res, err := svc.Sweep(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Transitioned)
	assert.Zero(t, res.Failed)

	res, err = svc.Sweep(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.Zero(t, res.Transitioned)

	later, err := store.Get(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, arrangement.StatusPending, later.Status)

	events, err := activity.RecentActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for _, ev := range events {
		assert.Equal(t, notification.ArrangementDefaulted, ev.Type)
		require.NotNil(t, ev.Amount)
		assert.Equal(t, "50.00", ev.Amount.StringFixed(2))
	}
}
