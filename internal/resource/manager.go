package resource

import (
	"log"
	"sync"
	"time"

	"CollectRecon/internal/logger"
	"CollectRecon/internal/serviceiface"
)

// ResourceManager owns the process-wide account lock registry and reports
// how many account locks are held on every heartbeat.
type ResourceManager struct {
	locks             *Locker
	stopChan          chan struct{}
	stopOnce          sync.Once
	heartbeatInterval time.Duration
}

func NewResourceManagerService(cfg map[string]interface{}, locks *Locker) serviceiface.Service {
	interval := 30 * time.Second
	if val, ok := cfg["heartbeat_interval"]; ok {
		switch v := val.(type) {
		case string:
			if d, err := time.ParseDuration(v); err == nil {
				interval = d
			}
		case int:
			interval = time.Duration(v) * time.Second
		case float64:
			interval = time.Duration(v) * time.Second
		}
	}
	if locks == nil {
		locks = NewLocker()
	}
	return &ResourceManager{
		locks:             locks,
		stopChan:          make(chan struct{}),
		heartbeatInterval: interval,
	}
}

func (rm *ResourceManager) Name() string { return "resourcemanager" }

func (rm *ResourceManager) Start() error {
	logger.Audit("ResourceManager started, heartbeat every %s", rm.heartbeatInterval)
	go rm.heartbeatLoop()
	return nil
}

func (rm *ResourceManager) Stop() error {
	rm.stopOnce.Do(func() { close(rm.stopChan) })
	return nil
}

// Locks exposes the registry shared with the ledger reconciler.
func (rm *ResourceManager) Locks() *Locker {
	return rm.locks
}

func (rm *ResourceManager) heartbeatLoop() {
	ticker := time.NewTicker(rm.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stopChan:
			return
		case <-ticker.C:
			held := rm.locks.Held()
			log.Printf("[RESOURCE] heartbeat at %s, account locks held: %d", time.Now().Format(time.RFC3339), held)
			if held > 0 {
				logger.Audit("heartbeat: %d account locks held", held)
			}
		}
	}
}
