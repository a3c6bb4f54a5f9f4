package scoring

import (
	"github.com/regimeiq/osint-threat-monitor/internal/config"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// TierMap converts numeric risk scores to ordinal tiers. A score sitting
// exactly on a boundary maps to the higher tier.
type TierMap struct {
	bounds config.TierBoundaries
}

func NewTierMap(bounds config.TierBoundaries) TierMap {
	return TierMap{bounds: bounds}
}

func (m TierMap) TierFor(score float64) models.Tier {
	switch {
	case score >= m.bounds.Critical:
		return models.TierCritical
	case score >= m.bounds.High:
		return models.TierHigh
	case score >= m.bounds.Elevated:
		return models.TierElevated
	case score >= m.bounds.Guarded:
		return models.TierGuarded
	default:
		return models.TierLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
