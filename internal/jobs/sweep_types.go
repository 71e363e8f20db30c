package jobs

import (
	"context"
	"time"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/config"
)

// SweepConfig holds configuration for the arrangement sweep
type SweepConfig struct {
	Schedule  string
	BatchSize int
	TimeZone  string
	Timeout   time.Duration
}

func NewDefaultSweepConfig() *SweepConfig {
	return &SweepConfig{
		Schedule:  config.DefaultSweepSchedule,
		BatchSize: config.SweepBatchSize,
		TimeZone:  config.DefaultTimeZone,
		Timeout:   5 * time.Minute,
	}
}

// Sweeper is the arrangement service as seen by the scheduler.
type Sweeper interface {
	Sweep(ctx context.Context, today time.Time) (arrangement.SweepResult, error)
}
