package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/evento-ems/access/internal/repository"
)

// ResetSweeper periodically clears reset tokens that have expired. Expiry is
// enforced at use time regardless; the sweeper only keeps stale digests from
// lingering in storage.
type ResetSweeper struct {
	users    repository.UserRepository
	interval time.Duration
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewResetSweeper creates a sweeper. A non-positive interval disables it.
func NewResetSweeper(users repository.UserRepository, interval time.Duration, metrics *Metrics, logger *slog.Logger) *ResetSweeper {
	return &ResetSweeper{
		users:    users,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (s *ResetSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.InfoContext(ctx, "reset token sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "reset token sweeper started",
		slog.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reset token sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce clears every reset pair that has expired and reports how many
// users were affected. Failures are logged and returned.
func (s *ResetSweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.users.ClearExpiredResetTokens(ctx, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clear expired reset tokens",
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	s.metrics.swept(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "cleared expired reset tokens",
			slog.Int64("count", n),
		)
	}
	return n, nil
}
