package consumer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"couplecare-crisis/internal/metrics"
	"couplecare-crisis/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSweepInProgress another replica holds the sweep lease
var ErrSweepInProgress = errors.New("sweep already in progress")

// CoupleLister lists couples eligible for the sweep
type CoupleLister interface {
	ListActiveCoupleIDs(ctx context.Context) ([]string, error)
}

// CoupleEvaluator runs the crisis pipeline for one couple
type CoupleEvaluator interface {
	Evaluate(ctx context.Context, coupleID string, asOf time.Time) (models.CoupleOutcome, error)
}

// CoolingOffExpirer completes cooling-off periods past ends_at
type CoolingOffExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// InterventionExpirer resolves interventions past expires_at
type InterventionExpirer interface {
	IgnoreExpired(ctx context.Context) (int64, error)
}

// SweepConsumer batch pass over all active couples on a bounded worker pool
type SweepConsumer struct {
	couples       CoupleLister
	evaluator     CoupleEvaluator
	coolingOff    CoolingOffExpirer
	interventions InterventionExpirer
	state         *StateManager
	workers       int
	holderID      string
	logger        *zap.Logger
}

// NewSweepConsumer creates a sweep consumer. state may be nil (no lease, no stored summary).
func NewSweepConsumer(
	couples CoupleLister,
	evaluator CoupleEvaluator,
	coolingOff CoolingOffExpirer,
	interventions InterventionExpirer,
	state *StateManager,
	workers int,
	logger *zap.Logger,
) *SweepConsumer {
	if workers <= 0 {
		workers = 1
	}
	host, _ := os.Hostname()
	return &SweepConsumer{
		couples:       couples,
		evaluator:     evaluator,
		coolingOff:    coolingOff,
		interventions: interventions,
		state:         state,
		workers:       workers,
		holderID:      fmt.Sprintf("%s:%s", host, uuid.New().String()),
		logger:        logger,
	}
}

// Sweep evaluates every active couple as of asOf (zero means now).
// A failing couple is logged and recorded in the summary; the sweep continues.
func (c *SweepConsumer) Sweep(ctx context.Context, asOf time.Time) (*models.SweepSummary, error) {
	started := time.Now().UTC()
	if asOf.IsZero() {
		asOf = started
	}
	asOf = asOf.UTC()

	if c.state != nil {
		acquired, err := c.state.AcquireLease(ctx, c.holderID)
		if err != nil {
			metrics.RecordSweep("failed", 0, 0, 0)
			return nil, err
		}
		if !acquired {
			metrics.RecordSweep("skipped", 0, 0, 0)
			c.logger.Info("Sweep skipped, lease held elsewhere")
			return nil, ErrSweepInProgress
		}
		defer func() {
			if err := c.state.ReleaseLease(context.Background(), c.holderID); err != nil {
				c.logger.Warn("Failed to release sweep lease", zap.Error(err))
			}
		}()
	}

	summary := &models.SweepSummary{
		Date:      asOf.Format("2006-01-02"),
		StartedAt: started.Format(time.RFC3339),
		PerCouple: []models.CoupleOutcome{},
		Failures:  []models.SweepFailure{},
	}

	c.housekeeping(ctx, summary)

	coupleIDs, err := c.couples.ListActiveCoupleIDs(ctx)
	if err != nil {
		metrics.RecordSweep("failed", 0, 0, time.Since(started))
		return nil, fmt.Errorf("failed to list active couples: %w", err)
	}

	c.logger.Info("Crisis sweep started",
		zap.String("as_of", asOf.Format(time.RFC3339)),
		zap.Int("couple_count", len(coupleIDs)),
		zap.Int("workers", c.workers),
	)

	type result struct {
		outcome models.CoupleOutcome
		err     error
	}
	results := make([]result, len(coupleIDs))

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for i, coupleID := range coupleIDs {
		i, coupleID := i, coupleID
		g.Go(func() error {
			outcome, err := c.evaluateCouple(ctx, coupleID, asOf)
			results[i] = result{outcome: outcome, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		// a recorded score stays in per_couple even when interventions failed
		if r.err == nil || r.outcome.ScoreID != "" {
			summary.PerCouple = append(summary.PerCouple, r.outcome)
		}
		if r.err != nil {
			c.logger.Error("Crisis sweep failed for couple",
				zap.String("couple_id", coupleIDs[i]),
				zap.Error(r.err),
			)
			summary.Failures = append(summary.Failures, models.SweepFailure{CoupleID: coupleIDs[i], Error: r.err.Error()})
		}
	}
	summary.FailedCount = len(summary.Failures)
	summary.ProcessedCount = len(coupleIDs) - summary.FailedCount
	summary.FinishedAt = time.Now().UTC().Format(time.RFC3339)

	duration := time.Since(started)
	metrics.RecordSweep("completed", summary.ProcessedCount, summary.FailedCount, duration)
	c.logger.Info("Crisis sweep finished",
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("failed", summary.FailedCount),
		zap.Duration("duration", duration),
	)

	if c.state != nil {
		if err := c.state.SaveSummary(ctx, summary); err != nil {
			c.logger.Warn("Failed to store sweep summary", zap.Error(err))
		}
	}
	return summary, nil
}

// ParseAsOf parses a YYYY-MM-DD sweep date as the last second of that UTC day
func ParseAsOf(day string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of must be YYYY-MM-DD: %w", err)
	}
	return t.Add(24*time.Hour - time.Second), nil
}

// LastSummary most recent stored summary, nil when none or when no state is configured
func (c *SweepConsumer) LastSummary(ctx context.Context) (*models.SweepSummary, error) {
	if c.state == nil {
		return nil, nil
	}
	return c.state.LastSummary(ctx)
}

// evaluateCouple isolates one couple: cancellation and panics become errors
func (c *SweepConsumer) evaluateCouple(ctx context.Context, coupleID string, asOf time.Time) (outcome models.CoupleOutcome, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.CoupleOutcome{CoupleID: coupleID}, ctxErr
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.evaluator.Evaluate(ctx, coupleID, asOf)
}

func (c *SweepConsumer) housekeeping(ctx context.Context, summary *models.SweepSummary) {
	if c.coolingOff != nil {
		n, err := c.coolingOff.ExpireStale(ctx)
		if err != nil {
			c.logger.Error("Failed to expire cooling-off periods", zap.Error(err))
		}
		summary.ExpiredPeriods = int(n)
	}
	if c.interventions != nil {
		if _, err := c.interventions.IgnoreExpired(ctx); err != nil {
			c.logger.Error("Failed to expire interventions", zap.Error(err))
		}
	}
}
