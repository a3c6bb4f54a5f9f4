package disagreement

import (
	"context"
	"errors"
	"testing"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/repo"
)

type fakeSignal struct {
	tiers map[string]models.Tier
	err   error
}

func (f *fakeSignal) ClassifyTier(_ context.Context, rec models.Record) (*models.Tier, error) {
	if f.err != nil {
		return nil, f.err
	}
	tier, ok := f.tiers[rec.ID]
	if !ok {
		return nil, nil // abstain
	}
	return &tier, nil
}

func TestCompareCountsMismatchesOnly(t *testing.T) {
	store := repo.NewMemoryStore()
	signal := &fakeSignal{tiers: map[string]models.Tier{
		"agree":    models.TierHigh,
		"disagree": models.TierCritical,
	}}
	m := NewMonitor(nil, signal, store)

	records := []models.Record{
		{ID: "agree", Tier: models.TierHigh, RiskScore: 75},
		{ID: "disagree", Tier: models.TierGuarded, RiskScore: 40},
		{ID: "abstained", Tier: models.TierLow, RiskScore: 5},
	}

	rate, err := m.Compare(context.Background(), "run-1", records)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if rate.Compared != 2 || rate.Mismatched != 1 {
		t.Fatalf("rate = %+v", rate)
	}
	if rate.Rate != 0.5 {
		t.Fatalf("rate value = %v", rate.Rate)
	}

	persisted, _ := store.Disagreements(context.Background(), "run-1")
	if len(persisted) != 1 {
		t.Fatalf("persisted %d records", len(persisted))
	}
	rec := persisted[0]
	if rec.RecordID != "disagree" || rec.RulesTier != models.TierGuarded || rec.SecondaryTier != models.TierCritical {
		t.Fatalf("record = %+v", rec)
	}
}

func TestCompareIsIdempotentPerRun(t *testing.T) {
	store := repo.NewMemoryStore()
	signal := &fakeSignal{tiers: map[string]models.Tier{"r": models.TierHigh}}
	m := NewMonitor(nil, signal, store)
	records := []models.Record{{ID: "r", Tier: models.TierLow}}

	for i := 0; i < 3; i++ {
		if _, err := m.Compare(context.Background(), "run-1", records); err != nil {
			t.Fatalf("compare %d: %v", i, err)
		}
	}
	persisted, _ := store.Disagreements(context.Background(), "run-1")
	if len(persisted) != 1 {
		t.Fatalf("idempotency broken: %d records", len(persisted))
	}

	// A new run id is a fresh idempotency scope.
	if _, err := m.Compare(context.Background(), "run-2", records); err != nil {
		t.Fatalf("compare run-2: %v", err)
	}
	persisted, _ = store.Disagreements(context.Background(), "run-2")
	if len(persisted) != 1 {
		t.Fatalf("run-2 missing its record: %d", len(persisted))
	}
}

func TestCompareSignalErrorSkipsRecord(t *testing.T) {
	store := repo.NewMemoryStore()
	m := NewMonitor(nil, &fakeSignal{err: errors.New("classifier down")}, store)

	rate, err := m.Compare(context.Background(), "run-1", []models.Record{{ID: "r", Tier: models.TierLow}})
	if err != nil {
		t.Fatalf("signal failure must not fail the run: %v", err)
	}
	if rate.Compared != 0 {
		t.Fatalf("rate = %+v", rate)
	}
}

func TestCompareNilSignalUsesPresuppliedTier(t *testing.T) {
	store := repo.NewMemoryStore()
	m := NewMonitor(nil, nil, store)

	high := models.TierHigh
	records := []models.Record{
		{ID: "labeled", Tier: models.TierLow, SecondaryTier: &high},
		{ID: "unlabeled", Tier: models.TierLow},
	}
	rate, err := m.Compare(context.Background(), "run-1", records)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if rate.Compared != 1 || rate.Mismatched != 1 {
		t.Fatalf("rate = %+v", rate)
	}
}
