package models

// CoupleOutcome result of one couple's pipeline run
type CoupleOutcome struct {
	CoupleID      string             `json:"couple_id"`
	ScoreID       string             `json:"score_id,omitempty"`
	Score         int                `json:"score"`
	Severity      Severity           `json:"severity"`
	Interventions []InterventionType `json:"interventions"`
}

// SweepFailure a couple whose pipeline failed during a sweep
type SweepFailure struct {
	CoupleID string `json:"couple_id"`
	Error    string `json:"error"`
}

// SweepSummary JSON-serializable output of one batch sweep
type SweepSummary struct {
	Date           string          `json:"date"`
	StartedAt      string          `json:"started_at"`
	FinishedAt     string          `json:"finished_at"`
	ProcessedCount int             `json:"processed_count"`
	FailedCount    int             `json:"failed_count"`
	ExpiredPeriods int             `json:"expired_cooling_off_periods"`
	PerCouple      []CoupleOutcome `json:"per_couple"`
	Failures       []SweepFailure  `json:"failures"`
}
