package arrangement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"CollectRecon/internal/ledger"
	"CollectRecon/internal/notification"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store  *MemoryStore
	events *notification.NotificationService
	svc    *Service
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ls := ledger.NewMemoryStore()
	_, err := ls.UpsertAccount(context.Background(), ledger.Account{AccountNumber: "A1", Balance: decimal.NewFromInt(500)})
	require.NoError(t, err)
	store := NewMemoryStore()
	events := notification.NewNotificationService(0)
	return &harness{store: store, events: events, svc: NewService(store, ls, events, cfg)}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (h *harness) create(t *testing.T, promised time.Time) *Arrangement {
	t.Helper()
	a, err := h.svc.Create(context.Background(), CreateRequest{
		AccountNumber: "A1",
		Amount:        decimal.NewFromInt(50),
		PromisedDate:  promised,
		CreatedBy:     "agent-7",
	})
	require.NoError(t, err)
	return a
}

func utcConfig() Config {
	return Config{PageSize: 2, MaxConcurrent: 3, Location: time.UTC}
}

func TestCreateValidates(t *testing.T) {
	h := newHarness(t, utcConfig())
	ctx := context.Background()

	_, err := h.svc.Create(ctx, CreateRequest{AccountNumber: "A1", Amount: decimal.Zero, PromisedDate: day(2024, 1, 1)})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.svc.Create(ctx, CreateRequest{AccountNumber: "A1", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = h.svc.Create(ctx, CreateRequest{AccountNumber: "NOPE", Amount: decimal.NewFromInt(10), PromisedDate: day(2024, 1, 1)})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	assert.True(t, IsNotFound(err))

	a := h.create(t, time.Date(2024, 5, 10, 18, 45, 0, 0, time.UTC))
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, day(2024, 5, 10), a.PromisedDate)
	assert.NotEmpty(t, a.AccountID)

	evs := h.events.Recent(0)
	require.Len(t, evs, 1)
	assert.Equal(t, notification.ArrangementCreated, evs[0].Type)
	assert.Equal(t, "agent-7", evs[0].Actor)
}

func TestConfirmPaidIsTerminal(t *testing.T) {
	h := newHarness(t, utcConfig())
	ctx := context.Background()
	a := h.create(t, day(2024, 5, 10))

	paid, err := h.svc.ConfirmPaid(ctx, a.ID, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, "agent-1", paid.ResolvedBy)
	require.NotNil(t, paid.ResolvedAt)

	_, err = h.svc.ConfirmPaid(ctx, a.ID, "agent-2")
	assert.ErrorIs(t, err, ErrTerminal)

	_, err = h.svc.ConfirmPaid(ctx, "missing", "agent-2")
	assert.ErrorIs(t, err, ErrNotFound)

	// A paid arrangement is never defaulted by the sweep.
	res, err := h.svc.Sweep(ctx, day(2030, 1, 1))
	require.NoError(t, err)
	assert.Zero(t, res.Transitioned)
	got, _ := h.svc.Get(ctx, a.ID)
	assert.Equal(t, StatusPaid, got.Status)
}

func TestSweepComparesDatesOnly(t *testing.T) {
	h := newHarness(t, utcConfig())
	ctx := context.Background()
	dueToday := h.create(t, day(2024, 3, 1))
	overdue := h.create(t, day(2024, 2, 29))

	res, err := h.svc.Sweep(ctx, time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)

	got, _ := h.svc.Get(ctx, overdue.ID)
	assert.Equal(t, StatusDefaulted, got.Status)
	assert.Equal(t, SystemActor, got.ResolvedBy)
	got, _ = h.svc.Get(ctx, dueToday.ID)
	assert.Equal(t, StatusPending, got.Status)
}

func TestSweepUsesConfiguredTimeZone(t *testing.T) {
	cfg := utcConfig()
	cfg.Location = time.FixedZone("IST", 5*3600+1800)
	h := newHarness(t, cfg)
	a := h.create(t, day(2024, 3, 1))

	// 19:00 UTC on the 1st is already the 2nd at +05:30.
	res, err := h.svc.Sweep(context.Background(), time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)
	got, _ := h.svc.Get(context.Background(), a.ID)
	assert.Equal(t, StatusDefaulted, got.Status)
}

func TestSweepIsIdempotentAcrossPages(t *testing.T) {
	h := newHarness(t, utcConfig())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		h.create(t, day(2024, 1, 1+i))
	}
	h.create(t, day(2024, 12, 31))

	today := day(2024, 6, 1)
	first, err := h.svc.Sweep(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 5, Transitioned: 5}, first)

	second, err := h.svc.Sweep(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, second.Transitioned)
	assert.Zero(t, second.Scanned)

	var defaulted int
	for _, ev := range h.events.Recent(0) {
		if ev.Type == notification.ArrangementDefaulted {
			defaulted++
		}
	}
	assert.Equal(t, 5, defaulted)
}

type flakyStore struct {
	*MemoryStore
	failID string
}

func (f *flakyStore) Transition(ctx context.Context, id string, to Status, actor string, at time.Time) (bool, error) {
	if id == f.failID {
		return false, errors.New("write timeout")
	}
	return f.MemoryStore.Transition(ctx, id, to, actor, at)
}

func TestSweepItemFailureDoesNotStopOthers(t *testing.T) {
	h := newHarness(t, utcConfig())
	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, h.create(t, day(2024, 1, 1)).ID)
	}
	flaky := &flakyStore{MemoryStore: h.store, failID: ids[2]}
	svc := NewService(flaky, nil, nil, utcConfig())

	res, err := svc.Sweep(context.Background(), day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 3, res.Transitioned)
	assert.Equal(t, 1, res.Failed)

	got, _ := h.store.Get(context.Background(), ids[2])
	assert.Equal(t, StatusPending, got.Status)
}

func TestConcurrentSweepsClaimOnce(t *testing.T) {
	h := newHarness(t, Config{PageSize: 50, MaxConcurrent: 10, Location: time.UTC})
	for i := 0; i < 30; i++ {
		h.create(t, day(2024, 1, 1))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.Sweep(context.Background(), day(2024, 2, 1))
			assert.NoError(t, err)
			mu.Lock()
			total += res.Transitioned
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 30, total)
}

func TestListByAccount(t *testing.T) {
	h := newHarness(t, utcConfig())
	for i := 0; i < 3; i++ {
		h.create(t, day(2024, 1, 1+i))
	}
	list, err := h.svc.ListByAccount(context.Background(), " A1 ")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = h.svc.ListByAccount(context.Background(), "B9")
	require.NoError(t, err)
	assert.Empty(t, list, fmt.Sprint(list))
}
