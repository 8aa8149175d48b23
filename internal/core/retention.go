package core

import (
	"context"
	"time"
)

// RetentionConfig controls history pruning. A zero or negative Days turns
// pruning off.
type RetentionConfig struct {
	Days          int
	CheckInterval time.Duration // default 24h
}

// RunHistoryPruner deletes history older than the retention window, once on
// start and then every CheckInterval, until ctx is done.
func (s *Service) RunHistoryPruner(ctx context.Context, cfg RetentionConfig) {
	if cfg.Days <= 0 {
		s.logger.Info("history pruning disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}
	s.logger.Info("history pruner started",
		"retention_days", cfg.Days,
		"interval", cfg.CheckInterval.String(),
	)

	s.pruneHistory(ctx, cfg.Days)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.pruneHistory(ctx, cfg.Days)
		}
	}
}

// pruneHistory runs one pass. Failures are logged and retried on the next tick.
func (s *Service) pruneHistory(ctx context.Context, days int) int64 {
	start := time.Now()
	cutoff := s.now().AddDate(0, 0, -days)
	purged, err := s.store.PurgeHistory(ctx, cutoff)
	if err != nil {
		s.logger.Error("history prune failed", "cutoff", cutoff, "error", err)
		return 0
	}
	s.logger.Info("history pruned",
		"entries_purged", purged,
		"cutoff", cutoff,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
