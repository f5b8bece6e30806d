package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couplecare-crisis/internal/metrics"
	"couplecare-crisis/internal/models"
	"couplecare-crisis/internal/notify"

	"go.uber.org/zap"
)

// InterventionStore persistence used by the engine
type InterventionStore interface {
	HasOpen(ctx context.Context, coupleID string, interventionType models.InterventionType) (bool, error)
	CreateIfNoneOpen(ctx context.Context, iv *models.CrisisIntervention) (bool, error)
}

// SafetyCheckStore persistence for safety checks
type SafetyCheckStore interface {
	CreateIfNonePending(ctx context.Context, check *models.SafetyCheck) (bool, error)
}

// ApplyResult outcome of persisting one evaluation
type ApplyResult struct {
	Fired        []*models.CrisisIntervention
	SafetyChecks []*models.SafetyCheck
	Skipped      []models.InterventionType
	Errors       []error
}

// FiredTypes types newly inserted by this evaluation
func (r *ApplyResult) FiredTypes() []models.InterventionType {
	types := make([]models.InterventionType, 0, len(r.Fired))
	for _, iv := range r.Fired {
		types = append(types, iv.InterventionType)
	}
	return types
}

// Err joined per-spec failures, nil when every spec was handled
func (r *ApplyResult) Err() error {
	return errors.Join(r.Errors...)
}

// Engine turns a recorded score into persisted interventions
type Engine struct {
	interventions InterventionStore
	safetyChecks  SafetyCheckStore
	notifier      notify.Notifier
	ttl           time.Duration
	logger        *zap.Logger
}

// NewEngine creates a rule engine; a nil notifier discards events
func NewEngine(interventions InterventionStore, safetyChecks SafetyCheckStore, notifier notify.Notifier, ttl time.Duration, logger *zap.Logger) *Engine {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Engine{
		interventions: interventions,
		safetyChecks:  safetyChecks,
		notifier:      notifier,
		ttl:           ttl,
		logger:        logger,
	}
}

// Apply decides and persists interventions for a freshly recorded score.
// Each spec is handled independently: a failure is logged and recorded, and
// the remaining specs still run.
func (e *Engine) Apply(ctx context.Context, score *models.CrisisScore, snap models.SignalSnapshot, now time.Time) ApplyResult {
	var result ApplyResult
	specs := Decide(score.Severity, snap)
	if len(specs) == 0 {
		return result
	}

	builder := NewInterventionBuilder(score.CoupleID, score, e.ttl, now)
	for _, spec := range specs {
		iv, check, inserted, err := e.applyOne(ctx, builder, spec, snap.DisengagedUserID)
		if iv != nil && inserted {
			result.Fired = append(result.Fired, iv)
			e.publish(ctx, notify.NewInterventionEvent(iv))
		}
		if check != nil {
			result.SafetyChecks = append(result.SafetyChecks, check)
			e.publish(ctx, notify.NewSafetyCheckEvent(check))
		}
		if err != nil {
			e.logger.Error("Failed to apply intervention",
				zap.String("couple_id", score.CoupleID),
				zap.String("score_id", score.ScoreID),
				zap.String("intervention_type", string(spec.Type)),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", spec.Type, err))
			continue
		}
		metrics.RecordIntervention(string(spec.Type), inserted)
		if !inserted {
			result.Skipped = append(result.Skipped, spec.Type)
		}
	}

	e.logger.Info("Applied crisis interventions",
		zap.String("couple_id", score.CoupleID),
		zap.String("severity", string(score.Severity)),
		zap.Int("fired", len(result.Fired)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Errors)),
	)
	return result
}

// applyOne read-then-conditional-insert; the insert itself is the final guard.
// A required safety check is stored before the intervention, so a failed check
// leaves nothing open and the next evaluation retries both.
func (e *Engine) applyOne(ctx context.Context, builder *InterventionBuilder, spec InterventionSpec, targetUserID string) (*models.CrisisIntervention, *models.SafetyCheck, bool, error) {
	iv := builder.BuildIntervention(spec)

	open, err := e.interventions.HasOpen(ctx, iv.CoupleID, spec.Type)
	if err != nil {
		return nil, nil, false, err
	}
	if open {
		return nil, nil, false, nil
	}

	var check *models.SafetyCheck
	if spec.SafetyCheck != "" {
		check, err = e.createSafetyCheck(ctx, builder, spec.SafetyCheck, targetUserID, iv.CoupleID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("safety check: %w", err)
		}
	}

	inserted, err := e.interventions.CreateIfNoneOpen(ctx, iv)
	if err != nil {
		return nil, check, false, err
	}
	return iv, check, inserted, nil
}

// createSafetyCheck returns nil when there is no target or a check is already pending
func (e *Engine) createSafetyCheck(ctx context.Context, builder *InterventionBuilder, checkType models.SafetyCheckType, targetUserID, coupleID string) (*models.SafetyCheck, error) {
	if targetUserID == "" {
		e.logger.Warn("Safety check has no target partner, skipping",
			zap.String("couple_id", coupleID),
			zap.String("check_type", string(checkType)),
		)
		return nil, nil
	}

	check := builder.BuildSafetyCheck(targetUserID, checkType)
	created, err := e.safetyChecks.CreateIfNonePending(ctx, check)
	if err != nil {
		e.logger.Error("Failed to create safety check",
			zap.String("couple_id", coupleID),
			zap.String("target_user_id", targetUserID),
			zap.Error(err),
		)
		return nil, err
	}
	if !created {
		return nil, nil
	}
	return check, nil
}

func (e *Engine) publish(ctx context.Context, event notify.Event) {
	if err := e.notifier.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to notify crisis event",
			zap.String("couple_id", event.CoupleID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
	}
}
