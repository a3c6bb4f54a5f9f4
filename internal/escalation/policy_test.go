package escalation

import (
	"testing"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

func TestDecideResponseWindows(t *testing.T) {
	cases := []struct {
		tier       models.Tier
		escalate   bool
		window     time.Duration
	}{
		{models.TierCritical, true, 30 * time.Minute},
		{models.TierHigh, true, 4 * time.Hour},
		{models.TierElevated, true, 24 * time.Hour},
		{models.TierGuarded, false, 0},
		{models.TierLow, false, 0},
	}

	for _, tc := range cases {
		d := Decide(tc.tier, 0.9)
		if d.Escalate != tc.escalate {
			t.Errorf("%s: escalate = %v, want %v", tc.tier, d.Escalate, tc.escalate)
		}
		if d.ResponseWindow != tc.window {
			t.Errorf("%s: window = %v, want %v", tc.tier, d.ResponseWindow, tc.window)
		}
		if d.Rationale == "" {
			t.Errorf("%s: missing rationale", tc.tier)
		}
	}
}

func TestDecideIsPure(t *testing.T) {
	a := Decide(models.TierHigh, 0.73)
	b := Decide(models.TierHigh, 0.73)
	if a != b {
		t.Fatalf("same inputs produced different decisions: %+v vs %+v", a, b)
	}
}

func TestDecideThreadUsesRecommendedTier(t *testing.T) {
	thread := models.Thread{RecommendedTier: models.TierCritical, Confidence: 0.95}
	d := DecideThread(thread)
	if !d.Escalate || d.ResponseWindow != 30*time.Minute {
		t.Fatalf("decision = %+v", d)
	}
}
