// Package sched provides the ticking loop the evaluators run on. Each tick
// produces one bounded unit of work (a sweep); ticks that fire while the
// previous sweep is still running are skipped, not queued.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/metrics"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// Sweep is one full evaluator pass. An error abandons the sweep; the next
// tick starts fresh.
type Sweep func(ctx context.Context) error

// Loop owns the ticker and cancellation for one evaluator.
type Loop struct {
	name     string
	interval time.Duration
	sweep    Sweep
	logger   *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewLoop constructs a loop. The interval must be positive.
func NewLoop(name string, interval time.Duration, sweep Sweep, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Loop{
		name:     name,
		interval: interval,
		sweep:    sweep,
		logger:   utils.ComponentLogger(logger, name),
	}
}

// Run ticks until ctx is cancelled, then waits for any in-flight sweep to
// finish before returning.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.wg.Wait()
			l.logger.Info("evaluator stopped")
			return
		case <-ticker.C:
			l.fire(ctx)
		}
	}
}

func (l *Loop) fire(ctx context.Context) {
	if !l.busy.CompareAndSwap(false, true) {
		metrics.ObserveSweepSkipped(l.name)
		l.logger.Warn("sweep still running, skipping tick")
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.busy.Store(false)

		start := time.Now()
		if err := l.sweep(ctx); err != nil {
			l.logger.Error("sweep abandoned", slog.Any("error", err))
			return
		}
		metrics.ObserveSweep(l.name, time.Since(start))
	}()
}
