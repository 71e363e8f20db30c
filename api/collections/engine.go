package collections

import (
	"context"
	"log"
	"time"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/batch"
	"CollectRecon/internal/config"
	"CollectRecon/internal/dashboard"
	"CollectRecon/internal/ledger"
	"CollectRecon/internal/notification"
	"CollectRecon/internal/resource"

	"github.com/shopspring/decimal"
)

// ActivityFeed serves the recent-activity endpoint. The in-memory hub and
// the Postgres activity log both satisfy it.
type ActivityFeed interface {
	RecentActivity(ctx context.Context, limit int) ([]notification.Event, error)
}

// Stores are the persistence backends the engine runs on. Nil members fall
// back to in-memory stores.
type Stores struct {
	Batches      batch.Store
	Ledger       ledger.Store
	Arrangements arrangement.Store
	// ActivityLog, when set, persists every event and serves the feed.
	ActivityLog interface {
		notification.Subscriber
		ActivityFeed
	}
}

// Engine is the wired ingestion pipeline, ledger and arrangement machine.
type Engine struct {
	Batches      *batch.Orchestrator
	Reconciler   *ledger.Reconciler
	Arrangements *arrangement.Service
	Ledger       ledger.Store
	Hub          *notification.NotificationService
	Stream       *dashboard.SSEServer
	Activity     ActivityFeed
}

// NewEngine builds the engine from the collections block of services.yaml.
func NewEngine(cfg map[string]interface{}, stores Stores, locks *resource.Locker) *Engine {
	if stores.Batches == nil {
		stores.Batches = batch.NewMemoryStore()
	}
	if stores.Ledger == nil {
		stores.Ledger = ledger.NewMemoryStore()
	}
	if stores.Arrangements == nil {
		stores.Arrangements = arrangement.NewMemoryStore()
	}

	loc, err := time.LoadLocation(config.String(cfg, "time_zone", config.DefaultTimeZone))
	if err != nil {
		log.Printf("[WARN] collections: %v, using UTC", err)
		loc = time.UTC
	}

	hub := notification.NewNotificationService(config.Int(cfg, "activity_keep", 0))
	hub.Subscribe(notification.AuditSubscriber{})
	stream := dashboard.NewSSEServer(time.Duration(config.Int(cfg, "sse_ping_seconds", 30)) * time.Second)
	hub.Subscribe(stream)

	var feed ActivityFeed = hub
	if stores.ActivityLog != nil {
		hub.Subscribe(stores.ActivityLog)
		feed = stores.ActivityLog
	}

	lcfg := ledger.DefaultConfig()
	lcfg.ApplyDefaultAmount = config.Bool(cfg, "apply_default_amount", lcfg.ApplyDefaultAmount)
	lcfg.DefaultAmount = config.Decimal(cfg, "default_amount", lcfg.DefaultAmount)
	lcfg.MaxConflictRetries = config.Int(cfg, "max_conflict_retries", lcfg.MaxConflictRetries)
	lcfg.Location = loc
	rec := ledger.NewReconciler(stores.Ledger, locks, hub, lcfg)

	bcfg := batch.DefaultConfig()
	bcfg.Workers = config.Int(cfg, "workers", bcfg.Workers)
	bcfg.MaxReportedErrors = config.Int(cfg, "max_reported_errors", bcfg.MaxReportedErrors)

	acfg := arrangement.DefaultConfig()
	acfg.Location = loc
	acfg.PageSize = config.Int(cfg, "sweep_batch_size", acfg.PageSize)
	acfg.MaxConcurrent = config.Int(cfg, "sweep_max_concurrent", acfg.MaxConcurrent)

	log.Printf("[INFO] collections engine: workers=%d default_amount=%v (%s) tz=%s",
		bcfg.Workers, lcfg.ApplyDefaultAmount, lcfg.DefaultAmount.StringFixed(2), loc)

	return &Engine{
		Batches:      batch.NewOrchestrator(stores.Batches, rec, bcfg),
		Reconciler:   rec,
		Arrangements: arrangement.NewService(stores.Arrangements, stores.Ledger, hub, acfg),
		Ledger:       stores.Ledger,
		Hub:          hub,
		Stream:       stream,
		Activity:     feed,
	}
}

// SeedAccount creates or refreshes an account; used by the CLI and tests.
func (e *Engine) SeedAccount(ctx context.Context, number, holder string, balance decimal.Decimal) (*ledger.Account, error) {
	return e.Ledger.UpsertAccount(ctx, ledger.Account{AccountNumber: number, HolderName: holder, Balance: balance})
}
