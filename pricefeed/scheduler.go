package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// cycleRunner runs a single update cycle
type cycleRunner interface {
	UpdateAll(ctx context.Context) (CycleReport, error)
}

// tickerFunc returns a tick channel and the function stopping it
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func wallClockTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)

	return t.C, t.Stop
}

// Scheduler runs an update immediately and then once per interval.
// At most one cycle is in flight; triggers that fire during a cycle are skipped.
type Scheduler struct {
	runner    cycleRunner
	interval  time.Duration
	newTicker tickerFunc
	inFlight  *semaphore.Weighted
	wg        sync.WaitGroup
}

// NewScheduler creates a new Scheduler
func NewScheduler(runner cycleRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:    runner,
		interval:  interval,
		newTicker: wallClockTicker,
		inFlight:  semaphore.NewWeighted(1),
	}
}

// Run blocks until ctx is cancelled, then waits for the running cycle
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", s.interval).
		Float64("hours", s.interval.Hours()).
		Msg("📡 Starting price feed service")

	s.trigger(ctx)

	ticks, stop := s.newTicker(s.interval)
	defer stop()

	log.Info().Msg("Price feed service started successfully")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🛑 Context cancelled, waiting for the running update")
			s.wg.Wait()

			return nil
		case <-ticks:
			s.trigger(ctx)
		}
	}
}

// trigger starts a cycle in the background unless one is already running
func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.inFlight.TryAcquire(1) {
		log.Warn().Msg("⏭️ Previous update still running, skipping this interval")

		return false
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.inFlight.Release(1)

		s.runCycle(ctx)
	}()

	return true
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	log.Info().Time("started_at", start).Msg("🔄 Updating prices")

	report, err := s.runner.UpdateAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to update prices")

		return
	}

	log.Info().
		Int("submitted", len(report.Submitted)).
		Int("failed", len(report.Failed)).
		Dur("took", time.Since(start)).
		Msg("✅ Price update cycle finished")
}
