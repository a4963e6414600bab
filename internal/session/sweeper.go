package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically closes expired sessions, independent of request
// traffic. Quiet deployments still converge without anyone calling OpenFor.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(svc *Service, logger *slog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: sweepInterval, logger: logger}
}

// Run blocks until the context is canceled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.svc.Sweep(ctx); err != nil {
				w.logger.WarnContext(ctx, "background session sweep failed", "error", err)
			}
		}
	}
}
