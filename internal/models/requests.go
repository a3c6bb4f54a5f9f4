package models

import "time"

// CorrelateRequest bounds one correlation run.
type CorrelateRequest struct {
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	WindowHours    float64   `json:"window_hours"`
	MinClusterSize int       `json:"min_cluster_size"`
}

// WindowKey identifies the run's window for locking and atomic replacement.
// Two requests over the same parameters contend for the same key.
func (r CorrelateRequest) WindowKey() string {
	return r.WindowStart.UTC().Format(time.RFC3339) + "/" +
		r.WindowEnd.UTC().Format(time.RFC3339)
}

// CorrelateResult is the full output of one run.
type CorrelateResult struct {
	RunID         string           `json:"run_id"`
	Threads       []Thread         `json:"threads"`
	ScoredRecords []Record         `json:"scored_records"`
	Disagreement  DisagreementRate `json:"disagreement"`
	Warnings      []string         `json:"warnings,omitempty"`
}

// ScoreResult is the synchronous single-record scoring output.
type ScoreResult struct {
	Score   float64              `json:"score"`
	Tier    Tier                 `json:"tier"`
	Factors []FactorContribution `json:"factors"`
	// Flagged is set only for vendor-profile records crossing the
	// configured vendor flag threshold.
	Flagged bool `json:"flagged,omitempty"`
}

// DisagreementRate summarises secondary-model mismatches for one run.
type DisagreementRate struct {
	RunID      string  `json:"run_id"`
	Compared   int     `json:"compared"`
	Mismatched int     `json:"mismatched"`
	Rate       float64 `json:"rate"`
}
