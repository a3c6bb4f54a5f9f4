package scoring

import (
	"fmt"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// scoreExternal computes the general multiplicative score for an
// external-signal record:
//
//	keyword_weight x frequency_factor x source_credibility x scale x recency
//
// Inputs arriving out of their documented ranges are clamped, never
// rejected. The result is clamped to [0,100].
func (s *Scorer) scoreExternal(feat *models.ExternalFeatures) (float64, []models.FactorContribution) {
	if feat == nil {
		return 0, nil
	}

	keyword := clamp(feat.KeywordWeight, 0, 1)

	frequency := feat.FrequencyFactor
	if frequency <= 0 && len(feat.DailyHistory) > 0 {
		frequency = FrequencyFactor(feat.KeywordCount, feat.DailyHistory)
	}
	frequency = clamp(frequency, 1, 4)

	credibility := feat.SourceCredibility
	if credibility <= 0 && feat.SourceID != "" && s.credibility != nil {
		credibility = s.credibility.Estimate(feat.SourceID)
	}
	credibility = clamp(credibility, 0, 1)

	recency := s.recencyDecay(feat.RecencyHours)

	score := clamp(keyword*frequency*credibility*s.cfg.GeneralScale*recency, 0, 100)

	// Each factor's contribution is the score it gates: the full score
	// divided by what removing the factor's attenuation would leave.
	factors := []models.FactorContribution{
		{
			Name:         "keyword_weight",
			Contribution: score * keyword,
			Detail:       fmt.Sprintf("weight %.2f", keyword),
		},
		{
			Name:         "frequency_factor",
			Contribution: score * (frequency / 4),
			Detail:       fmt.Sprintf("factor %.2f of 4.00", frequency),
		},
		{
			Name:         "source_credibility",
			Contribution: score * credibility,
			Detail:       fmt.Sprintf("credibility %.2f", credibility),
		},
		{
			Name:         "recency",
			Contribution: score * recency,
			Detail:       fmt.Sprintf("decay %.2f at %.0fh", recency, feat.RecencyHours),
		},
	}
	return score, factors
}

// recencyDecay fades a signal linearly to the configured floor over the
// recency horizon. Negative ages count as fresh.
func (s *Scorer) recencyDecay(hours float64) float64 {
	if hours < 0 {
		hours = 0
	}
	horizon := s.cfg.RecencyHorizonHours
	if horizon <= 0 {
		return 1
	}
	decay := 1 - hours/horizon
	if decay < s.cfg.RecencyFloor {
		return s.cfg.RecencyFloor
	}
	if decay > 1 {
		return 1
	}
	return decay
}
