package engine

import (
	"context"
	"time"
)

// RunSweepers drives periodic cleanup of expired ledger entries, sanctions,
// and warnings. Blocks until the context is cancelled; intended to run as
// its own goroutine alongside the serving loop.
func (e *Engine) RunSweepers(ctx context.Context) error {
	// the interval is re-read every pass so a hot-swapped config takes
	// effect without a restart
	timer := time.NewTimer(e.sweepInterval())
	defer timer.Stop()

	e.Logger.Info("starting background sweepers", "interval", e.sweepInterval())
	for {
		select {
		case <-ctx.Done():
			e.Logger.Info("sweepers shutting down")
			return nil
		case <-timer.C:
			e.sweepOnce(ctx)
			timer.Reset(e.sweepInterval())
		}
	}
}

func (e *Engine) sweepInterval() time.Duration {
	return e.cfg.Load().policy.SweepInterval
}

func (e *Engine) sweepOnce(ctx context.Context) {
	snap := e.cfg.Load()
	now := time.Now()

	// entries older than both the decay and offense windows can never
	// influence another decision
	retain := snap.policy.DecayWindow
	if snap.policy.OffenseLookback > retain {
		retain = snap.policy.OffenseLookback
	}
	if err := e.Ledger.Sweep(ctx, now.Add(-retain)); err != nil {
		sweepRunCount.WithLabelValues("ledger", "error").Inc()
		e.Logger.Warn("ledger sweep failed", "err", err)
	} else {
		sweepRunCount.WithLabelValues("ledger", "ok").Inc()
	}

	if err := e.Sanctions.Sweep(ctx, now); err != nil {
		sweepRunCount.WithLabelValues("sanctions", "error").Inc()
		e.Logger.Warn("sanction sweep failed", "err", err)
	} else {
		sweepRunCount.WithLabelValues("sanctions", "ok").Inc()
	}

	if err := e.Warnings.Sweep(ctx, now); err != nil {
		sweepRunCount.WithLabelValues("warnings", "error").Inc()
		e.Logger.Warn("warning sweep failed", "err", err)
	} else {
		sweepRunCount.WithLabelValues("warnings", "ok").Inc()
	}
}
