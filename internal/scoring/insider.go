package scoring

import "github.com/regimeiq/osint-threat-monitor/internal/models"

// scoreInsider is a weighted composite over the behavioral indicators.
// Indicator levels are clamped to [0,1]; the configured weights sum to 100
// so the composite lands in [0,100] without further scaling.
func (s *Scorer) scoreInsider(ind *models.InsiderIndicators) (float64, []models.FactorContribution) {
	if ind == nil {
		return 0, nil
	}
	w := s.cfg.InsiderWeights
	factors := []models.FactorContribution{
		weightedFactor("off_hours_access", clamp(ind.OffHoursAccess, 0, 1), w.OffHoursAccess),
		weightedFactor("data_movement", clamp(ind.DataMovement, 0, 1), w.DataMovement),
		weightedFactor("access_mismatch", clamp(ind.AccessMismatch, 0, 1), w.AccessMismatch),
		weightedFactor("communication_shift", clamp(ind.CommunicationShift, 0, 1), w.CommunicationShift),
	}
	var score float64
	for _, f := range factors {
		score += f.Contribution
	}
	return clamp(score, 0, 100), factors
}
