package gc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNow(t *testing.T) {
	e := newEnv(t, nil, Config{})
	ctx := context.Background()

	f := e.upload(t, "f", 10)
	_, err := e.sweeper.ScheduleDeletion(ctx, f.ID, 0)
	require.NoError(t, err)

	stats, err := e.sweeper.RunNow(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, stats.Sweep)
	require.NotNil(t, stats.Orphans)
	assert.Len(t, stats.Sweep.Items, 1)
	assert.Contains(t, stats.Summary(), "due=1")
}

func TestWorkerSweepsPeriodically(t *testing.T) {
	e := newEnv(t, nil, Config{Enabled: true, Interval: time.Hour})
	ctx := context.Background()

	f := e.upload(t, "f", 10)
	_, err := e.sweeper.ScheduleDeletion(ctx, f.ID, 0)
	require.NoError(t, err)

	e.sweeper.Start()
	e.sweeper.Start()

	waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
	defer cancelWait()
	require.NoError(t, e.clock.BlockUntilContext(waitCtx, 1))

	// Nothing runs until the clock reaches the first tick.
	n, err := e.meta.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e.clock.Advance(time.Hour)

	require.Eventually(t, func() bool {
		n, err := e.meta.CountFiles(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, e.sweeper.Stop(stopCtx))
	require.NoError(t, e.sweeper.Stop(stopCtx))
}

func TestStopWithoutStart(t *testing.T) {
	e := newEnv(t, nil, Config{Enabled: true})
	assert.NoError(t, e.sweeper.Stop(context.Background()))
}
