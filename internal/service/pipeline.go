package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couplecare-crisis/internal/evaluator"
	"couplecare-crisis/internal/metrics"
	"couplecare-crisis/internal/models"
	"couplecare-crisis/internal/scoring"

	"go.uber.org/zap"
)

// SignalAggregator builds the signal snapshot for a couple
type SignalAggregator interface {
	Aggregate(ctx context.Context, coupleID string, asOf time.Time) (models.SignalSnapshot, error)
}

// ScoreStore append-only score persistence
type ScoreStore interface {
	Record(ctx context.Context, coupleID string, signals models.Signals, score int, severity models.Severity, calculatedAt time.Time) (*models.CrisisScore, error)
	Latest(ctx context.Context, coupleID string) (*models.CrisisScore, error)
	History(ctx context.Context, coupleID string, limit int) ([]*models.CrisisScore, error)
}

// RuleEngine persists interventions for a recorded score
type RuleEngine interface {
	Apply(ctx context.Context, score *models.CrisisScore, snap models.SignalSnapshot, now time.Time) evaluator.ApplyResult
}

// Outcome result of one pipeline run for a couple
type Outcome struct {
	Score        *models.CrisisScore          `json:"score"`
	Signals      models.SignalSnapshot        `json:"signals"`
	Fired        []*models.CrisisIntervention `json:"interventions"`
	SafetyChecks []*models.SafetyCheck        `json:"safety_checks"`
	Skipped      []models.InterventionType    `json:"skipped,omitempty"`
}

// CoupleOutcome sweep summary entry
func (o *Outcome) CoupleOutcome() models.CoupleOutcome {
	types := make([]models.InterventionType, 0, len(o.Fired))
	for _, iv := range o.Fired {
		types = append(types, iv.InterventionType)
	}
	return models.CoupleOutcome{
		CoupleID:      o.Score.CoupleID,
		ScoreID:       o.Score.ScoreID,
		Score:         o.Score.Score,
		Severity:      o.Score.Severity,
		Interventions: types,
	}
}

// ScoreResult explicit result of ComputeScore; the caller picks the fallback
type ScoreResult struct {
	Score    int
	Severity models.Severity
	ScoreID  string
	Err      error
}

// Value returns the score or the error that prevented computing it
func (r ScoreResult) Value() (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	return r.Score, nil
}

// ValueOrZero returns the score, or 0 when computation failed
func (r ScoreResult) ValueOrZero() int {
	if r.Err != nil {
		return 0
	}
	return r.Score
}

// CrisisPipeline aggregate -> score -> record -> apply; shared by the sweep and on-demand paths
type CrisisPipeline struct {
	aggregator SignalAggregator
	scores     ScoreStore
	engine     RuleEngine
	now        func() time.Time
	logger     *zap.Logger
}

// NewCrisisPipeline creates the pipeline
func NewCrisisPipeline(aggregator SignalAggregator, scores ScoreStore, engine RuleEngine, logger *zap.Logger) *CrisisPipeline {
	return &CrisisPipeline{
		aggregator: aggregator,
		scores:     scores,
		engine:     engine,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock overrides the wall clock
func (p *CrisisPipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Run evaluates one couple as of asOf. The window ends at asOf and the score
// row is stamped with it. Intervention failures are returned alongside a
// populated Outcome; the other stages return a nil Outcome on failure.
func (p *CrisisPipeline) Run(ctx context.Context, coupleID string, asOf time.Time) (*Outcome, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}
	if asOf.IsZero() {
		asOf = p.now()
	}
	asOf = asOf.UTC()

	snap, err := p.aggregator.Aggregate(ctx, coupleID, asOf)
	if err != nil {
		metrics.RecordPipelineFailure("aggregate")
		p.logger.Error("Failed to aggregate crisis signals",
			zap.String("couple_id", coupleID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("aggregate signals: %w", err)
	}

	value, severity := scoring.Calculate(snap)

	score, err := p.scores.Record(ctx, coupleID, snap.Signals, value, severity, asOf)
	if err != nil {
		metrics.RecordPipelineFailure("record")
		p.logger.Error("Failed to record crisis score",
			zap.String("couple_id", coupleID),
			zap.Int("score", value),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record score: %w", err)
	}
	metrics.RecordScore(string(severity))

	applied := p.engine.Apply(ctx, score, snap, asOf)
	outcome := &Outcome{
		Score:        score,
		Signals:      snap,
		Fired:        applied.Fired,
		SafetyChecks: applied.SafetyChecks,
		Skipped:      applied.Skipped,
	}

	p.logger.Info("Crisis score computed",
		zap.String("couple_id", coupleID),
		zap.String("score_id", score.ScoreID),
		zap.Int("score", score.Score),
		zap.String("severity", string(score.Severity)),
		zap.Int("interventions", len(applied.Fired)),
	)

	if err := applied.Err(); err != nil {
		metrics.RecordPipelineFailure("apply")
		return outcome, fmt.Errorf("apply interventions: %w", err)
	}
	return outcome, nil
}

// Recompute synchronous on-demand evaluation as of now.
// Storage failures are wrapped with models.ErrRetryable.
func (p *CrisisPipeline) Recompute(ctx context.Context, coupleID string) (*Outcome, error) {
	if coupleID == "" {
		return nil, fmt.Errorf("couple_id is required")
	}
	outcome, err := p.Run(ctx, coupleID, p.now())
	if err != nil {
		return outcome, retryable(err)
	}
	return outcome, nil
}

// ComputeScore recomputes and returns the score as an explicit result
func (p *CrisisPipeline) ComputeScore(ctx context.Context, coupleID string) ScoreResult {
	outcome, err := p.Recompute(ctx, coupleID)
	if outcome == nil || outcome.Score == nil {
		if err == nil {
			err = fmt.Errorf("no score computed for couple %s", coupleID)
		}
		return ScoreResult{Err: err}
	}
	// the score row is committed even when an intervention insert failed
	if err != nil {
		p.logger.Warn("Score computed with intervention failures",
			zap.String("couple_id", coupleID),
			zap.Error(err),
		)
	}
	return ScoreResult{
		Score:    outcome.Score.Score,
		Severity: outcome.Score.Severity,
		ScoreID:  outcome.Score.ScoreID,
	}
}

// Evaluate runs the pipeline for the sweep and returns the summary entry.
// When the score was recorded but some interventions failed, the committed
// entry is returned together with the error.
func (p *CrisisPipeline) Evaluate(ctx context.Context, coupleID string, asOf time.Time) (models.CoupleOutcome, error) {
	outcome, err := p.Run(ctx, coupleID, asOf)
	if outcome == nil || outcome.Score == nil {
		return models.CoupleOutcome{CoupleID: coupleID}, err
	}
	return outcome.CoupleOutcome(), err
}

// Latest newest recorded score, nil when none
func (p *CrisisPipeline) Latest(ctx context.Context, coupleID string) (*models.CrisisScore, error) {
	return p.scores.Latest(ctx, coupleID)
}

// History newest-first recorded scores
func (p *CrisisPipeline) History(ctx context.Context, coupleID string, limit int) ([]*models.CrisisScore, error) {
	return p.scores.History(ctx, coupleID, limit)
}

func retryable(err error) error {
	if err == nil || errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrRetryable) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrRetryable, err)
}
