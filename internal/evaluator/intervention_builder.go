package evaluator

import (
	"time"

	"couplecare-crisis/internal/models"

	"github.com/google/uuid"
)

// InterventionBuilder builds rows for one couple evaluation
type InterventionBuilder struct {
	coupleID string
	score    *models.CrisisScore
	ttl      time.Duration
	now      time.Time
}

// NewInterventionBuilder creates a builder; ttl <= 0 leaves expires_at unset
func NewInterventionBuilder(coupleID string, score *models.CrisisScore, ttl time.Duration, now time.Time) *InterventionBuilder {
	return &InterventionBuilder{
		coupleID: coupleID,
		score:    score,
		ttl:      ttl,
		now:      now,
	}
}

// BuildIntervention builds an open intervention from an InterventionSpec
func (b *InterventionBuilder) BuildIntervention(spec InterventionSpec) *models.CrisisIntervention {
	entry, _ := CatalogFor(spec.Type)

	iv := &models.CrisisIntervention{
		InterventionID:   uuid.New().String(),
		CoupleID:         b.coupleID,
		InterventionType: spec.Type,
		Title:            entry.Title,
		Message:          entry.Message,
		ActionRequired:   spec.ActionRequired,
		TriggeredAt:      b.now,
	}
	if b.score != nil {
		scoreID := b.score.ScoreID
		iv.CrisisScoreID = &scoreID
		iv.Severity = b.score.Severity
	}
	if b.ttl > 0 {
		expires := b.now.Add(b.ttl)
		iv.ExpiresAt = &expires
	}
	return iv
}

// BuildSafetyCheck builds an open safety check for one partner
func (b *InterventionBuilder) BuildSafetyCheck(targetUserID string, checkType models.SafetyCheckType) *models.SafetyCheck {
	return &models.SafetyCheck{
		CheckID:      uuid.New().String(),
		CoupleID:     b.coupleID,
		TargetUserID: targetUserID,
		CheckType:    checkType,
		Message:      SafetyCheckMessage(checkType),
		CreatedAt:    b.now,
	}
}
