package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (s *stubSweeper) Sweep(ctx context.Context, _ time.Time) (arrangement.SweepResult, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if _, ok := ctx.Deadline(); !ok {
		return arrangement.SweepResult{}, errors.New("sweep ran without a deadline")
	}
	return arrangement.SweepResult{Scanned: 2, Transitioned: 2}, s.err
}

func TestCronServiceConfigOverrides(t *testing.T) {
	svc := NewCronService(map[string]interface{}{
		"sweep_schedule":   "*/5 * * * *",
		"sweep_batch_size": 25,
		"time_zone":        "UTC",
	}, &stubSweeper{})
	sc := svc.SweepConfig()
	assert.Equal(t, "*/5 * * * *", sc.Schedule)
	assert.Equal(t, 25, sc.BatchSize)
	assert.Equal(t, "UTC", sc.TimeZone)

	def := NewCronService(nil, &stubSweeper{}).SweepConfig()
	assert.Equal(t, config.DefaultSweepSchedule, def.Schedule)
	assert.Equal(t, config.SweepBatchSize, def.BatchSize)
}

func TestCronServiceStartStop(t *testing.T) {
	svc := NewCronService(map[string]interface{}{"time_zone": "UTC"}, &stubSweeper{})
	require.NoError(t, svc.Start())
	assert.Equal(t, "cron", svc.Name())
	assert.NoError(t, svc.Stop())

	bad := NewCronService(map[string]interface{}{"sweep_schedule": "not a schedule"}, &stubSweeper{})
	assert.Error(t, bad.Start())
}

func TestRunOnceRefusesOverlap(t *testing.T) {
	sw := &stubSweeper{release: make(chan struct{})}
	svc := NewCronService(nil, sw)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunOnce(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return sw.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepRunning)

	close(sw.release)
	require.NoError(t, <-done)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Transitioned)
}
