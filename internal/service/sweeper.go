package service

import (
	"context"
	"time"

	"github.com/liliang-cn/shopbot/internal/repository"
	"go.uber.org/zap"
)

// Sweeper periodically evicts idle sessions
type Sweeper struct {
	sessions repository.SessionStore
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. The caller owns its lifecycle through Run's context.
func NewSweeper(sessions repository.SessionStore, interval, maxAge time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Sweeper{sessions: sessions, interval: interval, maxAge: maxAge, logger: logger.Named("sweeper")}
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Session sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("max_age", s.maxAge),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce removes sessions idle for longer than the max age
func (s *Sweeper) SweepOnce() int {
	removed := s.sessions.Sweep(s.maxAge)
	if removed > 0 {
		s.logger.Info("Expired sessions removed", zap.Int("count", removed))
	}
	return removed
}
