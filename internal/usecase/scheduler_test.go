package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *stubDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *stubDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

type countingPoller struct{ calls atomic.Int32 }

func (p *countingPoller) PollAll(context.Context) (PollSummary, error) {
	p.calls.Add(1)
	return PollSummary{RunID: "run"}, nil
}

func TestSchedulerRunsPollOnTrigger(t *testing.T) {
	t.Parallel()

	driver := &stubDriver{}
	poller := &countingPoller{}
	s := NewScheduler(driver, poller, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)
	driver.job(time.Now())
	driver.job(time.Now())
	assert.Equal(t, int32(2), poller.calls.Load())

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerWithoutDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, &countingPoller{}, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
