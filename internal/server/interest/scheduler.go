// Package interest runs the periodic accrual job.
package interest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/server/activity"
	"github.com/dmitrijs2005/gophbank/internal/server/ledger"
	"github.com/dmitrijs2005/gophbank/internal/server/persistence"
	"github.com/shopspring/decimal"
)

type Scheduler struct {
	ledger   *ledger.Ledger
	saver    persistence.Saver
	recorder *activity.Recorder
	logger   logging.Logger
	rate     decimal.Decimal
	period   time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewScheduler(l *ledger.Ledger, saver persistence.Saver, recorder *activity.Recorder,
	logger logging.Logger, rate decimal.Decimal, period time.Duration) *Scheduler {
	return &Scheduler{
		ledger:   l,
		saver:    saver,
		recorder: recorder,
		logger:   logger.With("module", "interest"),
		rate:     rate,
		period:   period,
	}
}

// Run fires a pass every period until ctx is done, then waits for a pass
// that is still in flight.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info(ctx, "Interest scheduler started", "rate", s.rate.String(), "period", s.period.String())

	for {
		select {
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.RunOnce(ctx)
			}()
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info(context.Background(), "Interest scheduler stopped")
			return
		}
	}
}

// RunOnce performs one accrual pass and saves the ledger. It returns false
// without doing anything when another pass is still running.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn(ctx, "Previous interest pass still running, tick skipped")
		return false
	}
	defer s.running.Store(false)

	// a started pass always finishes and persists, even during shutdown
	ctx = context.WithoutCancel(ctx)

	updated, err := s.ledger.AccrueInterest(s.rate)
	if err != nil {
		s.logger.Error(ctx, "Interest pass failed", "error", err.Error())
		return true
	}
	s.logger.Info(ctx, "Interest pass complete", "updated", updated)
	s.recorder.Interest(ctx, s.rate, updated)

	// failure is logged by the saver
	_ = s.saver.Save(ctx, s.ledger)
	return true
}
