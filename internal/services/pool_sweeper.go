package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// expiredClearer is the part of GeoQueryPool the sweeper drives.
type expiredClearer interface {
	ClearExpired(ctx context.Context) (int, error)
}

// PoolSweeper calls ClearExpired on a fixed interval. It lives outside the
// pool so the pool itself never runs timers.
type PoolSweeper struct {
	pool   expiredClearer
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoolSweeper creates a sweeper for pool.
func NewPoolSweeper(pool expiredClearer, logger *logrus.Logger) *PoolSweeper {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PoolSweeper{
		pool:   pool,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start sweeps every interval until Stop is called. A non-positive interval
// leaves the sweeper idle.
func (s *PoolSweeper) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.done = make(chan struct{})
	s.logger.WithField("interval", interval.String()).Info("Starting geo pool sweeper")

	ticker := time.NewTicker(interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunSweep(s.ctx); err != nil {
					s.logger.WithError(err).Warn("Geo pool sweep failed")
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-progress sweep to finish.
// Start and Stop are not safe to call concurrently with each other.
func (s *PoolSweeper) Stop() {
	s.cancel()
	if s.done != nil {
		<-s.done
		s.logger.Info("Stopped geo pool sweeper")
	}
}

// RunSweep performs one sweep immediately.
func (s *PoolSweeper) RunSweep(ctx context.Context) (int, error) {
	removed, err := s.pool.ClearExpired(ctx)
	if err != nil {
		return removed, err
	}
	s.logger.WithField("removed", removed).Debug("Geo pool sweep completed")
	return removed, nil
}
