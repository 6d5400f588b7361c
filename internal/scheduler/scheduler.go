// Package scheduler runs the gateway's periodic maintenance jobs.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner is the piece of the rate limiter the scheduler drives.
type Pruner interface {
	PruneIdle(maxIdle time.Duration) int
}

// bucketIdleCutoff is how long a caller must be silent before its rate
// bucket is dropped.
const bucketIdleCutoff = 2 * time.Hour

// Scheduler owns the cron runner.
type Scheduler struct {
	c      *cron.Cron
	logger *slog.Logger
}

// New wires the maintenance jobs. Start must be called to begin running them.
func New(pruner Pruner, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		c:      cron.New(),
		logger: logger.With("component", "scheduler"),
	}
	_, err := s.c.AddFunc("@hourly", func() {
		pruned := pruner.PruneIdle(bucketIdleCutoff)
		if pruned > 0 {
			s.logger.Info("Pruned idle rate-limit buckets", "count", pruned)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.c.Start()
}

func (s *Scheduler) Stop() {
	s.c.Stop()
}
