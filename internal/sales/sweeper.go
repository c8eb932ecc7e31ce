package sales

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Sweeper drops forms that nobody has changed for longer than the idle
// timeout. Submitted forms go the same way once idle.
type Sweeper struct {
	storage  Storage
	log      *zap.Logger
	idle     time.Duration
	interval time.Duration
}

func NewSweeper(storage Storage, logger *zap.Logger, idle, interval time.Duration) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = idle
	}
	return &Sweeper{storage: storage, log: logger, idle: idle, interval: interval}
}

// RunForever sweeps on every tick until ctx is cancelled.
func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.RunOnce(now); err != nil {
				s.log.Warn("form sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce removes the forms idle at now and returns how many went.
func (s *Sweeper) RunOnce(now time.Time) (int, error) {
	forms, err := s.storage.GetAll()
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-s.idle)
	removed := 0
	for _, f := range forms {
		if !f.idleSince(cutoff) {
			continue
		}
		if err := s.storage.Delete(f.ID()); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("idle forms removed", zap.Int("count", removed), zap.Duration("idle", s.idle))
	}
	return removed, nil
}
