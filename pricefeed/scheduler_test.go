package pricefeed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner counts cycles and optionally blocks each one until released
type fakeRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{started: make(chan struct{}, 16)}
}

func (f *fakeRunner) UpdateAll(ctx context.Context) (CycleReport, error) {
	f.calls.Add(1)
	f.started <- struct{}{}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}

	return CycleReport{}, f.err
}

func manualTicker(ch chan time.Time) tickerFunc {
	return func(time.Duration) (<-chan time.Time, func()) {
		return ch, func() {}
	}
}

func waitStarted(t *testing.T, runner *fakeRunner) {
	t.Helper()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for update cycle")
	}
}

// waitIdle blocks until no cycle holds the in-flight guard
func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()

	require.Eventually(t, func() bool {
		if !s.inFlight.TryAcquire(1) {
			return false
		}

		s.inFlight.Release(1)

		return true
	}, 2*time.Second, time.Millisecond)
}

func TestSchedulerRun(t *testing.T) {
	runner := newFakeRunner()
	ticks := make(chan time.Time)

	s := NewScheduler(runner, time.Hour)
	s.newTicker = manualTicker(ticks)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	// one cycle right away, without any tick
	waitStarted(t, runner)
	assert.Equal(t, int32(1), runner.calls.Load())

	// then exactly one cycle per tick
	for i := 2; i <= 4; i++ {
		waitIdle(t, s)
		ticks <- time.Now()
		waitStarted(t, runner)
		assert.Equal(t, int32(i), runner.calls.Load())
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Equal(t, int32(4), runner.calls.Load())
}

func TestSchedulerRun_FailedCycleKeepsScheduling(t *testing.T) {
	runner := newFakeRunner()
	runner.err = errors.New("rate command execution failed")
	ticks := make(chan time.Time)

	s := NewScheduler(runner, time.Hour)
	s.newTicker = manualTicker(ticks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx) //nolint:errcheck

	waitStarted(t, runner)
	waitIdle(t, s)
	ticks <- time.Now()
	waitStarted(t, runner)

	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestSchedulerSkipsOverlappingTrigger(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})

	s := NewScheduler(runner, time.Hour)
	ctx := context.Background()

	require.True(t, s.trigger(ctx))
	waitStarted(t, runner)

	// the first cycle is still blocked, so these triggers are dropped
	assert.False(t, s.trigger(ctx))
	assert.False(t, s.trigger(ctx))

	close(runner.release)
	s.wg.Wait()

	assert.Equal(t, int32(1), runner.calls.Load())

	// once the cycle is over the next trigger runs again
	require.True(t, s.trigger(ctx))
	waitStarted(t, runner)
	s.wg.Wait()

	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestSchedulerRun_WaitsForRunningCycle(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})

	s := NewScheduler(runner, time.Hour)
	s.newTicker = manualTicker(make(chan time.Time))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	waitStarted(t, runner)
	cancel()

	// the blocked cycle observes cancellation and Run returns after it
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
