package aggregator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"couplecare-crisis/internal/models"

	"go.uber.org/zap"
)

// CoupleSource resolves a couple and its partner links
type CoupleSource interface {
	GetCouple(ctx context.Context, coupleID string) (*models.Couple, error)
}

// SignalSource raw reads over check-ins, messages and conflicts
type SignalSource interface {
	RedCheckinDays(ctx context.Context, userIDs []string, from, to time.Time) ([]models.RedCheckin, error)
	LastCheckins(ctx context.Context, userIDs []string, asOf time.Time) (map[string]time.Time, error)
	MessageTones(ctx context.Context, coupleID string, from, to time.Time) ([]models.MessageTone, error)
	ConflictCount(ctx context.Context, coupleID string, from, to time.Time) (int, error)
}

// SignalAggregator builds the trailing-window signal vector for a couple
type SignalAggregator struct {
	couples            CoupleSource
	signals            SignalSource
	windowDays         int
	conflictWindowDays int
	logger             *zap.Logger
}

// NewSignalAggregator creates a signal aggregator; non-positive windows default to 7 days
func NewSignalAggregator(couples CoupleSource, signals SignalSource, windowDays, conflictWindowDays int, logger *zap.Logger) *SignalAggregator {
	if windowDays <= 0 {
		windowDays = 7
	}
	if conflictWindowDays <= 0 {
		conflictWindowDays = 7
	}
	return &SignalAggregator{
		couples:            couples,
		signals:            signals,
		windowDays:         windowDays,
		conflictWindowDays: conflictWindowDays,
		logger:             logger,
	}
}

// WindowHours length of the signal window in hours
func (a *SignalAggregator) WindowHours() float64 {
	return float64(a.windowDays * 24)
}

// Aggregate computes signals for the window ending at asOf
func (a *SignalAggregator) Aggregate(ctx context.Context, coupleID string, asOf time.Time) (models.SignalSnapshot, error) {
	var snap models.SignalSnapshot
	if coupleID == "" {
		return snap, fmt.Errorf("couple_id is required")
	}

	couple, err := a.couples.GetCouple(ctx, coupleID)
	if err != nil {
		return snap, fmt.Errorf("failed to load couple: %w", err)
	}

	from := asOf.Add(-time.Duration(a.windowDays) * 24 * time.Hour)
	partners := couple.PartnerIDs()

	if len(partners) > 0 {
		redDays, err := a.signals.RedCheckinDays(ctx, partners, from, asOf)
		if err != nil {
			return snap, fmt.Errorf("failed to aggregate red zone days: %w", err)
		}
		snap.RedZoneDays, snap.MutualRedZone = countRedZone(redDays, partners)

		last, err := a.signals.LastCheckins(ctx, partners, asOf)
		if err != nil {
			return snap, fmt.Errorf("failed to aggregate check-in activity: %w", err)
		}
		snap.DisengagementHours, snap.DisengagedUserID = disengagement(partners, last, from, asOf, a.WindowHours())
	}

	tones, err := a.signals.MessageTones(ctx, coupleID, from, asOf)
	if err != nil {
		return snap, fmt.Errorf("failed to aggregate message tones: %w", err)
	}
	snap.HighRiskMessages, snap.GottmanViolations = countTones(tones)

	conflictFrom := asOf.Add(-time.Duration(a.conflictWindowDays) * 24 * time.Hour)
	snap.ConflictFrequency, err = a.signals.ConflictCount(ctx, coupleID, conflictFrom, asOf)
	if err != nil {
		return snap, fmt.Errorf("failed to aggregate conflicts: %w", err)
	}

	a.logger.Debug("Aggregated crisis signals",
		zap.String("couple_id", coupleID),
		zap.Int("red_zone_days", snap.RedZoneDays),
		zap.Int("high_risk_messages", snap.HighRiskMessages),
		zap.Int("gottman_violations", snap.GottmanViolations),
		zap.Float64("disengagement_hours", snap.DisengagementHours),
		zap.Int("conflict_frequency", snap.ConflictFrequency),
		zap.Bool("mutual_red_zone", snap.MutualRedZone),
	)

	return snap, nil
}

// countRedZone distinct red days across partners, and whether every partner
// of a two-partner couple contributed at least one
func countRedZone(days []models.RedCheckin, partners []string) (int, bool) {
	distinct := make(map[string]struct{})
	byUser := make(map[string]struct{})
	for _, d := range days {
		distinct[d.Day] = struct{}{}
		byUser[d.UserID] = struct{}{}
	}

	mutual := len(partners) == 2
	for _, p := range partners {
		if _, ok := byUser[p]; !ok {
			mutual = false
		}
	}
	return len(distinct), mutual
}

// disengagement hours since the last check-in of the partner silent longest.
// 0 when every partner checked in inside [from, asOf]; a partner who never
// checked in counts as silent for the whole window.
func disengagement(partners []string, last map[string]time.Time, from, asOf time.Time, windowHours float64) (float64, string) {
	var hours float64
	var userID string
	for _, p := range partners {
		ts, ok := last[p]
		if ok && !ts.Before(from) {
			continue
		}
		silent := windowHours
		if ok {
			silent = asOf.Sub(ts).Hours()
		}
		if silent > hours {
			hours = silent
			userID = p
		}
	}
	return hours, userID
}

func countTones(tones []models.MessageTone) (highRisk, gottman int) {
	for _, t := range tones {
		switch strings.ToLower(t.RiskLevel) {
		case "medium", "high":
			highRisk++
		}
		gottman += len(t.WarningTags)
	}
	return highRisk, gottman
}
