package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts stale sessions from a Store.
type Sweeper struct {
	store    *Store
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. Non-positive maxAge defaults to 24h and
// non-positive interval to one hour.
func NewSweeper(store *Store, maxAge, interval time.Duration) *Sweeper {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.RunOnce(); n > 0 {
				s.logger.Info("evicted stale sessions", "count", n, "max_age", s.maxAge)
			}
		}
	}
}

// RunOnce performs a single eviction sweep and returns the number of
// sessions removed.
func (s *Sweeper) RunOnce() int {
	return s.store.EvictOlderThan(s.maxAge)
}
