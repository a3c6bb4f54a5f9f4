package models

import "time"

// ReasonCode is a discrete, enumerable justification for a correlation edge.
// Codes are produced only by the evidence builder, which restricts the
// shared_<type> family to the known pivot vocabulary.
type ReasonCode string

const (
	ReasonCrossSource   ReasonCode = "cross_source"
	ReasonTightTemporal ReasonCode = "tight_temporal"
)

// SharedPivotReason builds the shared_<pivot_type> code for a known pivot
// type. The bool is false when the type is outside the closed vocabulary.
func SharedPivotReason(t PivotType) (ReasonCode, bool) {
	if !KnownPivotType(t) {
		return "", false
	}
	return ReasonCode("shared_" + string(t)), true
}

// PairEvidence justifies one admitted correlation edge.
type PairEvidence struct {
	RecordA      string       `json:"record_a"`
	RecordB      string       `json:"record_b"`
	ReasonCodes  []ReasonCode `json:"reason_codes"`
	SharedPivots []Pivot      `json:"shared_pivots"`
}

// Thread is a connected cluster of records linked transitively through
// shared pivots inside the correlation window.
type Thread struct {
	ID          string       `json:"thread_id"`
	Label       string       `json:"label"`
	Members     []string     `json:"members"` // record ids, time-ordered
	WindowStart time.Time    `json:"window_start"`
	WindowEnd   time.Time    `json:"window_end"`
	SourceTypes []SourceType `json:"source_types"`
	// SharedPivots lists pivots carried by at least two members.
	SharedPivots []Pivot        `json:"shared_pivots"`
	ReasonCodes  []ReasonCode   `json:"reason_codes"`
	Evidence     []PairEvidence `json:"evidence"`

	AggregateScore  float64 `json:"aggregate_score"`
	MaxExternal     float64 `json:"max_external_score"`
	MaxInsider      float64 `json:"max_insider_score"`
	MaxVendor       float64 `json:"max_vendor_score"`
	Confidence      float64 `json:"confidence"`
	RecommendedTier Tier    `json:"recommended_tier"`

	CreatedAt time.Time `json:"created_at"`
}

// MemberCount returns the thread size.
func (t Thread) MemberCount() int { return len(t.Members) }

// DisagreementRecord captures a rules-vs-secondary tier mismatch pending
// analyst adjudication. Append-only; (RecordID, RunID) is the idempotency key.
type DisagreementRecord struct {
	RecordID       string    `json:"record_id"`
	RunID          string    `json:"run_id"`
	RulesTier      Tier      `json:"rules_tier"`
	SecondaryTier  Tier      `json:"secondary_tier"`
	RulesScore     float64   `json:"rules_score"`
	AnalystVerdict string    `json:"analyst_verdict,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
