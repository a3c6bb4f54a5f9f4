// Package disagreement tracks where the rules engine and the independent
// classifier land on different tiers, as a drift signal for both models.
package disagreement

import (
	"context"
	"log/slog"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/repo"
)

// Monitor compares rules tiers against the secondary signal and appends
// mismatch records. It never alters the rules outcome.
type Monitor struct {
	signal repo.SecondarySignal
	store  repo.ResultStore
	logger *slog.Logger
	now    func() time.Time
}

// NewMonitor constructs a Monitor. signal may be nil, in which case only
// records carrying a pre-supplied secondary tier are compared.
func NewMonitor(logger *slog.Logger, signal repo.SecondarySignal, store repo.ResultStore) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{signal: signal, store: store, logger: logger, now: time.Now}
}

// Compare evaluates every scored record for the run and returns the
// mismatch rate. Records the secondary signal abstains on are excluded
// from the denominator. Signal errors skip the record rather than failing
// the run.
func (m *Monitor) Compare(ctx context.Context, runID string, records []models.Record) (models.DisagreementRate, error) {
	rate := models.DisagreementRate{RunID: runID}
	for _, rec := range records {
		secondary := rec.SecondaryTier
		if secondary == nil && m.signal != nil {
			tier, err := m.signal.ClassifyTier(ctx, rec)
			if err != nil {
				m.logger.Warn("secondary classification failed",
					slog.String("record_id", rec.ID),
					slog.Any("error", err))
				continue
			}
			secondary = tier
		}
		if secondary == nil {
			continue
		}

		rate.Compared++
		if *secondary == rec.Tier {
			continue
		}
		rate.Mismatched++

		record := models.DisagreementRecord{
			RecordID:      rec.ID,
			RunID:         runID,
			RulesTier:     rec.Tier,
			SecondaryTier: *secondary,
			RulesScore:    rec.RiskScore,
			CreatedAt:     m.now().UTC(),
		}
		if err := m.store.AppendDisagreement(ctx, record); err != nil {
			return rate, err
		}
	}
	if rate.Compared > 0 {
		rate.Rate = float64(rate.Mismatched) / float64(rate.Compared)
	}
	return rate, nil
}

// Records is a pure read of the persisted mismatches for a run. The full
// rate, including the compared denominator, lives on the run result.
func (m *Monitor) Records(ctx context.Context, runID string) ([]models.DisagreementRecord, error) {
	return m.store.Disagreements(ctx, runID)
}
