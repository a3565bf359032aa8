package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the part of session.Manager the service drives.
type Sweeper interface {
	Sweep() int
}

type Config struct {
	SweepInterval time.Duration
}

// Service periodically closes idle sessions so their in-memory stores are
// released even when no request touches the manager.
type Service struct {
	Sessions Sweeper
	Config   Config
	Logger   *slog.Logger
}

type SweepSummary struct {
	SessionsExpired int `json:"sessions_expired"`
}

// Run sweeps every SweepInterval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary := s.RunSweepOnce(ctx)
			if s.Logger != nil && summary.SessionsExpired > 0 {
				s.Logger.InfoContext(ctx, "session sweep completed", slog.Any("summary", summary))
			}
		}
	}
}

func (s *Service) RunSweepOnce(_ context.Context) SweepSummary {
	expired := 0
	if s.Sessions != nil {
		expired = s.Sessions.Sweep()
	}
	sweepRunsTotal.Inc()
	sessionsExpiredTotal.Add(float64(expired))
	return SweepSummary{SessionsExpired: expired}
}

func (s *Service) ensureDefaults() {
	if s.Config.SweepInterval <= 0 {
		s.Config.SweepInterval = time.Minute
	}
}
