package scoring

import (
	"math"

	"couplecare-crisis/internal/models"
)

// Component weights and caps of the composite score
const (
	RedZoneWeight = 20.0
	RedZoneCap    = 60.0

	HighRiskWeight = 5.0
	HighRiskCap    = 25.0

	GottmanWeight = 4.0
	GottmanCap    = 20.0

	DisengagementWeight = 0.25
	DisengagementCap    = 15.0

	ConflictWeight = 3.0
	ConflictCap    = 15.0
)

// Classification thresholds
const (
	CriticalScore = 75
	HighScore     = 50
	ModerateScore = 25

	SustainedRedZoneDays     = 3
	HighRiskMessageThreshold = 5
	GottmanThreshold         = 5
	DisengagementThreshold   = 48.0
	ConflictThreshold        = 5
)

// Calculate maps a signal snapshot to a score in [0,100] and its severity.
// Pure and deterministic.
func Calculate(snap models.SignalSnapshot) (int, models.Severity) {
	score := Score(snap.Signals)
	return score, Classify(score, snap)
}

// Score weighted, per-component capped sum clamped to [0,100]
func Score(s models.Signals) int {
	total := component(float64(s.RedZoneDays), RedZoneWeight, RedZoneCap) +
		component(float64(s.HighRiskMessages), HighRiskWeight, HighRiskCap) +
		component(float64(s.GottmanViolations), GottmanWeight, GottmanCap) +
		component(s.DisengagementHours, DisengagementWeight, DisengagementCap) +
		component(float64(s.ConflictFrequency), ConflictWeight, ConflictCap)

	total = math.Round(total)
	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return int(total)
}

// Classify highest severity band matched by score or signal thresholds
func Classify(score int, snap models.SignalSnapshot) models.Severity {
	switch {
	case score >= CriticalScore,
		snap.RedZoneDays >= SustainedRedZoneDays && snap.MutualRedZone:
		return models.SeverityCritical
	case score >= HighScore,
		snap.HighRiskMessages >= HighRiskMessageThreshold,
		snap.GottmanViolations >= GottmanThreshold,
		snap.DisengagementHours >= DisengagementThreshold:
		return models.SeverityHigh
	case score >= ModerateScore,
		snap.ConflictFrequency >= ConflictThreshold:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

func component(value, weight, limit float64) float64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return math.Min(value*weight, limit)
}
