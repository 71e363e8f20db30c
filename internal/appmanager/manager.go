package appmanager

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"CollectRecon/api"
	"CollectRecon/api/collections"
	"CollectRecon/internal/config"
	"CollectRecon/internal/jobs"
	"CollectRecon/internal/logger"
	"CollectRecon/internal/resource"
	"CollectRecon/internal/serviceiface"
	"CollectRecon/internal/store/pgstore"
	"CollectRecon/internal/store/sqlstore"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

var db *sql.DB
var pgxPool *pgxpool.Pool

func SetDB(database *sql.DB) {
	db = database
}

func SetPgxPool(pool *pgxpool.Pool) {
	pgxPool = pool
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// GetPgxPool returns the pgx pool connection
func GetPgxPool() *pgxpool.Pool {
	return pgxPool
}

// shared between constructors; services.yaml order decides who builds them
var (
	locks  *resource.Locker
	engine *collections.Engine
)

func sharedLocks() *resource.Locker {
	if locks == nil {
		locks = resource.NewLocker()
	}
	return locks
}

func sharedEngine(cfg map[string]interface{}) *collections.Engine {
	if engine == nil {
		engine = collections.NewEngine(cfg, buildStores(cfg), sharedLocks())
	}
	return engine
}

// buildStores picks the persistence backends from the open connections:
// batches on lib/pq, ledger/arrangements/activity on pgx. Without a
// database everything stays in memory.
func buildStores(cfg map[string]interface{}) collections.Stores {
	var stores collections.Stores
	if pgxPool != nil {
		if config.Bool(cfg, "ensure_schema", true) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := pgstore.EnsureSchema(ctx, pgxPool); err != nil {
				log.Printf("[ERROR] postgres schema: %v", err)
			}
			cancel()
		}
		stores.Ledger = pgstore.NewLedgerStore(pgxPool)
		stores.Arrangements = pgstore.NewArrangementStore(pgxPool)
		stores.ActivityLog = pgstore.NewActivityLog(pgxPool)
	}
	if db != nil {
		stores.Batches = sqlstore.Wrap(db, sqlstore.Postgres).Batches()
	}
	if pgxPool == nil && db == nil {
		log.Println("[WARN] no database configured, collections data is kept in memory")
	}
	return stores
}

var serviceConstructors = map[string]func(map[string]interface{}) serviceiface.Service{
	"logger": func(cfg map[string]interface{}) serviceiface.Service {
		return logger.NewLoggerService(cfg)
	},
	"resourcemanager": func(cfg map[string]interface{}) serviceiface.Service {
		return resource.NewResourceManagerService(cfg, sharedLocks())
	},
	"collections": func(cfg map[string]interface{}) serviceiface.Service {
		return collections.NewCollectionsService(cfg, sharedEngine(cfg))
	},
	"cron": func(cfg map[string]interface{}) serviceiface.Service {
		pageSize := config.Int(cfg, "sweep_batch_size", config.SweepBatchSize)
		return jobs.NewCronService(cfg, sharedEngine(nil).Arrangements.WithPageSize(pageSize))
	},
	"gateway": func(cfg map[string]interface{}) serviceiface.Service {
		return api.NewGatewayService(cfg)
	},
}

// ------------------- MANAGER -------------------

type AppManager struct {
	services []serviceiface.Service
	mu       sync.Mutex
}

func NewAppManager() *AppManager {
	return &AppManager{
		services: make([]serviceiface.Service, 0),
	}
}

func (am *AppManager) RegisterService(s serviceiface.Service) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.services = append(am.services, s)
}

// StartAll starts services in registration order. The resource manager's
// heartbeat starts last so it reports on a fully wired process.
func (am *AppManager) StartAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	for _, service := range am.services {
		if service.Name() == "resourcemanager" {
			continue
		}
		fmt.Println("Starting service:", service.Name())
		if err := service.Start(); err != nil {
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
	}

	for _, service := range am.services {
		if service.Name() == "resourcemanager" {
			fmt.Println("Starting service:", service.Name())
			if err := service.Start(); err != nil {
				return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
			}
		}
	}
	return nil
}

func (am *AppManager) StopAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	var firstErr error
	for i := len(am.services) - 1; i >= 0; i-- {
		svc := am.services[i]
		if err := svc.Stop(); err != nil {
			log.Printf("[ERROR] failed to stop service %s: %v", svc.Name(), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to stop service %s: %w", svc.Name(), err)
			}
		}
	}
	return firstErr
}

// ------------------- YAML CONFIG -------------------

type ServiceSequencer struct {
	Services []ServiceConfig `yaml:"services"`
}

type ServiceConfig struct {
	Name       string                 `yaml:"name"`
	StartOrder int                    `yaml:"start_order"`
	Config     map[string]interface{} `yaml:"config"`
}

func LoadServiceSequence(path string) ([]ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseServiceSequence(data)
}

func ParseServiceSequence(data []byte) ([]ServiceConfig, error) {
	var seq ServiceSequencer
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, err
	}

	// sort by start_order
	sort.SliceStable(seq.Services, func(i, j int) bool {
		return seq.Services[i].StartOrder < seq.Services[j].StartOrder
	})

	return seq.Services, nil
}

func (am *AppManager) AutoRegisterServices(configs []ServiceConfig) {
	for _, svc := range configs {
		constructor, ok := serviceConstructors[svc.Name]
		if !ok {
			log.Printf("[WARN] unknown service %q in sequence, skipped", svc.Name)
			continue
		}
		am.RegisterService(constructor(svc.Config))
	}

	for _, svc := range am.services {
		if l, ok := svc.(*logger.LoggerService); ok {
			logger.SetGlobalLogger(l)
			break
		}
	}
	am.wireServices()
}

// wireServices connects services that depend on each other once all of
// them exist.
func (am *AppManager) wireServices() {
	var (
		coll *collections.CollectionsService
		cron *jobs.CronService
	)
	for _, svc := range am.services {
		switch s := svc.(type) {
		case *collections.CollectionsService:
			coll = s
		case *jobs.CronService:
			cron = s
		}
	}
	if coll != nil && cron != nil {
		coll.SetSweepRunner(cron)
	}
}

func (am *AppManager) GetServiceByName(name string) serviceiface.Service {
	for _, svc := range am.services {
		if svc.Name() == name {
			return svc
		}
	}
	return nil
}

// Reset drops the shared engine and locks; tests use it between runs.
func Reset() {
	engine = nil
	locks = nil
}
