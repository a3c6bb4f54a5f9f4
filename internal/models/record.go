package models

import (
	"strings"
	"time"
)

// SourceType enumerates the record families the engine correlates across.
type SourceType string

const (
	SourceExternalSignal   SourceType = "external_signal"
	SourceInsiderTelemetry SourceType = "insider_telemetry"
	SourceVendorProfile    SourceType = "vendor_profile"
)

// PivotType enumerates the typed entity values used as linkage keys.
type PivotType string

const (
	PivotUserID   PivotType = "user_id"
	PivotDeviceID PivotType = "device_id"
	PivotVendorID PivotType = "vendor_id"
	PivotDomain   PivotType = "domain"
	PivotIPv4     PivotType = "ipv4"
	PivotURL      PivotType = "url"
	PivotEmail    PivotType = "email"
	PivotCVE      PivotType = "cve"
	PivotMD5      PivotType = "md5"
	PivotSHA1     PivotType = "sha1"
	PivotSHA256   PivotType = "sha256"
	PivotHandle   PivotType = "actor_handle"
)

// KnownPivotType reports whether the type belongs to the closed pivot vocabulary.
func KnownPivotType(t PivotType) bool {
	switch t {
	case PivotUserID, PivotDeviceID, PivotVendorID, PivotDomain, PivotIPv4,
		PivotURL, PivotEmail, PivotCVE, PivotMD5, PivotSHA1, PivotSHA256, PivotHandle:
		return true
	}
	return false
}

// Pivot is a typed identifying value. Equality is exact on (Type, Value).
type Pivot struct {
	Type  PivotType `json:"type"`
	Value string    `json:"value"`
}

// Key renders the pivot in the analyst-facing "type:value" form.
func (p Pivot) Key() string {
	return string(p.Type) + ":" + p.Value
}

// ExternalFeatures carries the multi-factor inputs for external-signal
// scoring. Collectors may supply the frequency factor and credibility
// directly, or leave them zero and provide the raw inputs instead: a daily
// keyword-count history for the frequency factor, and a source id whose
// learned credibility the scorer looks up.
type ExternalFeatures struct {
	KeywordWeight     float64 `json:"keyword_weight"`
	FrequencyFactor   float64 `json:"frequency_factor,omitempty"`
	SourceCredibility float64 `json:"source_credibility,omitempty"`
	RecencyHours      float64 `json:"recency_hours"`

	SourceID     string    `json:"source_id,omitempty"`
	KeywordCount float64   `json:"keyword_count,omitempty"`
	DailyHistory []float64 `json:"daily_history,omitempty"`
}

// InsiderIndicators holds behavioral indicator levels, each expected in [0,1].
type InsiderIndicators struct {
	OffHoursAccess     float64 `json:"off_hours_access"`
	DataMovement       float64 `json:"data_movement"`
	AccessMismatch     float64 `json:"access_mismatch"`
	CommunicationShift float64 `json:"communication_shift"`
}

// VendorExposure holds third-party exposure factors, each expected in [0,1].
type VendorExposure struct {
	GeographicExposure float64 `json:"geographic_exposure"`
	Concentration      float64 `json:"concentration"`
	PrivilegeScope     float64 `json:"privilege_scope"`
	DataSensitivity    float64 `json:"data_sensitivity"`
	CompliancePosture  float64 `json:"compliance_posture"`
}

// Record is one normalized security-relevant observation. Exactly one of the
// feature payloads is expected to be set, matching Source.
type Record struct {
	ID        string     `json:"id"`
	Source    SourceType `json:"source_type"`
	Timestamp time.Time  `json:"timestamp"`
	Pivots    []Pivot    `json:"pivots,omitempty"`
	Content   string     `json:"content,omitempty"`

	External *ExternalFeatures  `json:"external,omitempty"`
	Insider  *InsiderIndicators `json:"insider,omitempty"`
	Vendor   *VendorExposure    `json:"vendor,omitempty"`

	// Filled by the scoring engine; re-scoring replaces these fields.
	RiskScore     float64              `json:"risk_score"`
	Tier          Tier                 `json:"tier"`
	Factors       []FactorContribution `json:"factors,omitempty"`
	VendorFlagged bool                 `json:"vendor_flagged,omitempty"`

	// Optional externally supplied secondary-model label.
	SecondaryTier *Tier `json:"secondary_tier,omitempty"`
}

// HasPivot reports whether the record carries the exact (type, value) pivot.
func (r Record) HasPivot(p Pivot) bool {
	for _, candidate := range r.Pivots {
		if candidate == p {
			return true
		}
	}
	return false
}

// FactorContribution is one explainable term of a score, ordered by weight.
type FactorContribution struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail,omitempty"`
}

// ParseSourceType normalizes a source-type string, defaulting to external.
func ParseSourceType(raw string) SourceType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SourceInsiderTelemetry), "insider":
		return SourceInsiderTelemetry
	case string(SourceVendorProfile), "supply_chain", "vendor":
		return SourceVendorProfile
	default:
		return SourceExternalSignal
	}
}
