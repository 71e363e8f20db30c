package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/config"
	"CollectRecon/internal/logger"

	"github.com/robfig/cron/v3"
)

var ErrSweepRunning = errors.New("arrangement sweep already running")

type CronService struct {
	config  map[string]interface{}
	sweeper Sweeper
	sweep   *SweepConfig
	cron    *cron.Cron
	running sync.Mutex
	now     func() time.Time
}

func NewCronService(cfg map[string]interface{}, sweeper Sweeper) *CronService {
	sc := NewDefaultSweepConfig()
	// Override sweep config from services.yaml if provided
	sc.Schedule = config.String(cfg, "sweep_schedule", sc.Schedule)
	sc.BatchSize = config.Int(cfg, "sweep_batch_size", sc.BatchSize)
	sc.TimeZone = config.String(cfg, "time_zone", sc.TimeZone)
	return &CronService{
		config:  cfg,
		sweeper: sweeper,
		sweep:   sc,
		now:     time.Now,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) SweepConfig() SweepConfig { return *s.sweep }

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	loc, err := time.LoadLocation(s.sweep.TimeZone)
	if err != nil {
		log.Printf("[WARN] unknown time zone %q, scheduling in UTC", s.sweep.TimeZone)
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(s.sweep.Schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			logger.Audit("arrangement sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule arrangement sweep: %w", err)
	}
	c.Start()
	s.cron = c

	logger.Audit("arrangement sweep scheduled (%s, %s)", s.sweep.Schedule, loc)
	log.Printf("Cron service started: arrangement sweep scheduled at %q", s.sweep.Schedule)
	return nil
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	log.Println("Cron service stopped.")
	return nil
}

// RunOnce runs the sweep now. Overlapping runs in this process are refused.
func (s *CronService) RunOnce(ctx context.Context) (arrangement.SweepResult, error) {
	if !s.running.TryLock() {
		log.Println("[SWEEP] previous run still in progress, skipping")
		return arrangement.SweepResult{}, ErrSweepRunning
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.sweep.Timeout)
	defer cancel()

	started := s.now()
	log.Println("[SWEEP] starting arrangement sweep")
	res, err := s.sweeper.Sweep(ctx, started)
	if err != nil {
		return res, err
	}
	logger.Audit("arrangement sweep: scanned=%d defaulted=%d failed=%d in %s",
		res.Scanned, res.Transitioned, res.Failed, time.Since(started).Round(time.Millisecond))
	return res, nil
}
