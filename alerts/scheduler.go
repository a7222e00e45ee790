package alerts

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner is a batch the scheduler repeats.
type Runner interface {
	Run(ctx context.Context) (RunResult, error)
}

// Scheduler repeats a Runner on a fixed interval.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger
}

// NewScheduler runs runner every interval, once a day when interval is not
// positive. With runOnStart the first run happens immediately.
func NewScheduler(runner Runner, interval time.Duration, runOnStart bool, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{runner: runner, interval: interval, runOnStart: runOnStart, logger: logger}
}

// Start blocks, running the batch on every tick until ctx is done. A run in
// progress is cancelled with ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("alert scheduler started", zap.Duration("interval", s.interval))
	if s.runOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("alert scheduler stopped")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	res, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("alert run", zap.Error(err))
		return
	}
	s.logger.Info("alert run finished",
		zap.Int("evaluated", res.Evaluated),
		zap.Int("raised", res.Raised),
		zap.Int("refreshed", res.Refreshed),
		zap.Int("cleared", res.Cleared),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)))
}
