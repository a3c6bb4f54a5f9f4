package report

import (
	"strings"
	"testing"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

func packFixture() (models.Thread, map[string]models.Record) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	userPivot := models.Pivot{Type: models.PivotUserID, Value: "emp-7415"}
	domainPivot := models.Pivot{Type: models.PivotDomain, Value: "aster-cloud.example"}

	records := map[string]models.Record{
		"ext-1": {
			ID:        "ext-1",
			Source:    models.SourceExternalSignal,
			Timestamp: base,
			RiskScore: 32.0,
			Tier:      models.TierGuarded,
			Factors: []models.FactorContribution{
				{Name: "keyword_weight", Contribution: 16.0, Detail: "level 0.80 x weight 20"},
				{Name: "source_credibility", Contribution: 0.9, Detail: "level 0.90 x weight 1"},
			},
		},
		"ven-1": {
			ID:            "ven-1",
			Source:        models.SourceVendorProfile,
			Timestamp:     base.Add(20 * time.Minute),
			RiskScore:     78.5,
			Tier:          models.TierHigh,
			VendorFlagged: true,
		},
	}

	thread := models.Thread{
		ID:              "soi-9e1c22ab04fd",
		Label:           "user_id:emp-7415",
		Members:         []string{"ext-1", "ven-1"},
		SourceTypes:     []models.SourceType{models.SourceExternalSignal, models.SourceVendorProfile},
		WindowStart:     base,
		WindowEnd:       base.Add(20 * time.Minute),
		AggregateScore:  78.5,
		Confidence:      0.9,
		RecommendedTier: models.TierHigh,
		SharedPivots:    []models.Pivot{domainPivot, userPivot},
		Evidence: []models.PairEvidence{
			{
				RecordA:      "ext-1",
				RecordB:      "ven-1",
				SharedPivots: []models.Pivot{userPivot},
				ReasonCodes: []models.ReasonCode{
					models.ReasonCrossSource,
					models.ReasonCode("shared_user_id"),
					models.ReasonTightTemporal,
				},
			},
		},
	}
	return thread, records
}

func TestCasePackContainsCoreSections(t *testing.T) {
	thread, records := packFixture()
	out := CasePack(thread, records)

	for _, want := range []string{
		"# Case Pack: soi-9e1c22ab04fd",
		"**Subject:** user_id:emp-7415",
		"| Recommended tier | HIGH |",
		"| Aggregate score | 78.5 |",
		"| Confidence | 0.90 |",
		"| Members | 2 |",
		"(20 min)",
		"| Source types | external_signal, vendor_profile |",
		"## Response",
		"## Shared Pivots",
		"- `domain:aster-cloud.example`",
		"- `user_id:emp-7415`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("case pack missing %q\n%s", want, out)
		}
	}
}

func TestCasePackTimelineAndEvidence(t *testing.T) {
	thread, records := packFixture()
	out := CasePack(thread, records)

	if !strings.Contains(out, "`ext-1` [external_signal] score 32.0 (GUARDED)") {
		t.Errorf("timeline entry for ext-1 missing\n%s", out)
	}
	if !strings.Contains(out, "**flagged for vendor review**") {
		t.Errorf("vendor flag marker missing\n%s", out)
	}
	if !strings.Contains(out, "keyword_weight: 16.0 (level 0.80 x weight 20)") {
		t.Errorf("factor breakdown missing\n%s", out)
	}
	if !strings.Contains(out, "- `ext-1` <> `ven-1`: cross_source, shared_user_id, tight_temporal via user_id:emp-7415") {
		t.Errorf("evidence line missing\n%s", out)
	}
}

func TestCasePackUnavailableRecord(t *testing.T) {
	thread, records := packFixture()
	delete(records, "ven-1")
	out := CasePack(thread, records)

	if !strings.Contains(out, "- ven-1 (record unavailable)") {
		t.Errorf("unavailable record placeholder missing\n%s", out)
	}
}
