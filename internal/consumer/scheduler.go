package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the sweep on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	sweep  *SweepConsumer
	spec   string
	logger *zap.Logger
}

// NewScheduler validates spec (standard 5-field, UTC) and creates a scheduler
func NewScheduler(spec string, sweep *SweepConsumer, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	s := &Scheduler{
		cron:   c,
		sweep:  sweep,
		spec:   spec,
		logger: logger,
	}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling and blocks until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Sweep scheduler started", zap.String("schedule", s.spec))

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Sweep scheduler stopped")
	return nil
}

// Next time of the next scheduled sweep
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now().UTC())
}

func (s *Scheduler) run() {
	summary, err := s.sweep.Sweep(context.Background(), time.Time{})
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			return
		}
		s.logger.Error("Scheduled sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("Scheduled sweep completed",
		zap.String("date", summary.Date),
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("failed", summary.FailedCount),
	)
}
