package scoring

import (
	"fmt"
	"sort"

	"github.com/regimeiq/osint-threat-monitor/internal/config"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// Scorer applies the per-source scoring formulas and the shared tier map.
// All methods are pure over their inputs; a Scorer is safe for concurrent use.
type Scorer struct {
	cfg         config.ScoringConfig
	tier        TierMap
	credibility *CredibilityEstimator
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg, tier: NewTierMap(cfg.TierBoundaries)}
}

// UseCredibility lets external-signal scoring fall back to the learned
// per-source estimate when a record omits source_credibility.
func (s *Scorer) UseCredibility(est *CredibilityEstimator) {
	s.credibility = est
}

// TierFor exposes the configured score-to-tier mapping.
func (s *Scorer) TierFor(score float64) models.Tier {
	return s.tier.TierFor(score)
}

// ScoreRecord fills RiskScore, Tier, Factors, and VendorFlagged in place,
// dispatching on the record's source type. Missing feature payloads score
// zero rather than erroring, so malformed records still pass through.
func (s *Scorer) ScoreRecord(rec *models.Record) {
	var score float64
	var factors []models.FactorContribution

	switch rec.Source {
	case models.SourceInsiderTelemetry:
		score, factors = s.scoreInsider(rec.Insider)
	case models.SourceVendorProfile:
		score, factors = s.scoreVendor(rec.Vendor)
		rec.VendorFlagged = score >= s.cfg.VendorFlagThreshold
	default:
		score, factors = s.scoreExternal(rec.External)
	}

	rec.RiskScore = score
	rec.Tier = s.tier.TierFor(score)
	rec.Factors = s.materialFactors(factors)
}

// materialFactors drops contributions below the materiality cutoff and
// orders the rest largest first, ties broken by name.
func (s *Scorer) materialFactors(factors []models.FactorContribution) []models.FactorContribution {
	kept := factors[:0]
	for _, f := range factors {
		if f.Contribution >= s.cfg.MaterialityCutoff {
			kept = append(kept, f)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Contribution == kept[j].Contribution {
			return kept[i].Name < kept[j].Name
		}
		return kept[i].Contribution > kept[j].Contribution
	})
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func weightedFactor(name string, level, weight float64) models.FactorContribution {
	return models.FactorContribution{
		Name:         name,
		Contribution: level * weight,
		Detail:       fmt.Sprintf("level %.2f x weight %.0f", level, weight),
	}
}
