package scoring

import "github.com/regimeiq/osint-threat-monitor/internal/models"

// scoreVendor is the third-party exposure composite. The caller compares
// the result against the vendor flag threshold to mark review candidates.
func (s *Scorer) scoreVendor(exp *models.VendorExposure) (float64, []models.FactorContribution) {
	if exp == nil {
		return 0, nil
	}
	w := s.cfg.VendorWeights
	factors := []models.FactorContribution{
		weightedFactor("geographic_exposure", clamp(exp.GeographicExposure, 0, 1), w.GeographicExposure),
		weightedFactor("concentration", clamp(exp.Concentration, 0, 1), w.Concentration),
		weightedFactor("privilege_scope", clamp(exp.PrivilegeScope, 0, 1), w.PrivilegeScope),
		weightedFactor("data_sensitivity", clamp(exp.DataSensitivity, 0, 1), w.DataSensitivity),
		weightedFactor("compliance_posture", clamp(exp.CompliancePosture, 0, 1), w.CompliancePosture),
	}
	var score float64
	for _, f := range factors {
		score += f.Contribution
	}
	return clamp(score, 0, 100), factors
}
