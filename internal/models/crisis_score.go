package models

import "time"

// CrisisScore one row of the crisis_scores timeseries (append-only)
type CrisisScore struct {
	ScoreID            string    `json:"score_id" db:"score_id"`
	CoupleID           string    `json:"couple_id" db:"couple_id"`
	Score              int       `json:"score" db:"score"`
	Severity           Severity  `json:"severity" db:"severity"`
	RedZoneDays        int       `json:"red_zone_days" db:"red_zone_days"`
	HighRiskMessages   int       `json:"high_risk_messages" db:"high_risk_messages"`
	GottmanViolations  int       `json:"gottman_violations" db:"gottman_violations"`
	DisengagementHours float64   `json:"disengagement_hours" db:"disengagement_hours"`
	ConflictFrequency  int       `json:"conflict_frequency" db:"conflict_frequency"`
	CalculatedAt       time.Time `json:"calculated_at" db:"calculated_at"`
}

// Signals returns the stored signal breakdown
func (s *CrisisScore) Signals() Signals {
	return Signals{
		RedZoneDays:        s.RedZoneDays,
		HighRiskMessages:   s.HighRiskMessages,
		GottmanViolations:  s.GottmanViolations,
		DisengagementHours: s.DisengagementHours,
		ConflictFrequency:  s.ConflictFrequency,
	}
}
