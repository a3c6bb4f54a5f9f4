package scoring

import (
	"strings"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// ScoreThread fills the thread's aggregate score, per-source maxima,
// confidence, and recommended tier from its already-scored members.
// Members absent from the record map contribute nothing.
func (s *Scorer) ScoreThread(thread *models.Thread, records map[string]models.Record) {
	for _, id := range thread.Members {
		rec, ok := records[id]
		if !ok {
			continue
		}
		if rec.RiskScore > thread.AggregateScore {
			thread.AggregateScore = rec.RiskScore
		}
		switch rec.Source {
		case models.SourceInsiderTelemetry:
			if rec.RiskScore > thread.MaxInsider {
				thread.MaxInsider = rec.RiskScore
			}
		case models.SourceVendorProfile:
			if rec.RiskScore > thread.MaxVendor {
				thread.MaxVendor = rec.RiskScore
			}
		default:
			if rec.RiskScore > thread.MaxExternal {
				thread.MaxExternal = rec.RiskScore
			}
		}
	}

	thread.Confidence = s.threadConfidence(thread)
	thread.RecommendedTier = s.tier.TierFor(thread.AggregateScore)

	// High-confidence corroboration across enough source families bumps the
	// recommendation one tier. Confidence never lowers a tier.
	if thread.Confidence >= s.cfg.HighConfidence && len(thread.SourceTypes) >= s.cfg.EscalateSourceTypes {
		thread.RecommendedTier = thread.RecommendedTier.Escalate(1)
	}
}

// threadConfidence blends three bounded signals: how many distinct kinds of
// correlation reason appear, how many source families corroborate, and the
// mean strength of the individual edges.
func (s *Scorer) threadConfidence(thread *models.Thread) float64 {
	kinds := make(map[string]struct{}, 3)
	for _, code := range thread.ReasonCodes {
		switch {
		case code == models.ReasonCrossSource:
			kinds["cross_source"] = struct{}{}
		case code == models.ReasonTightTemporal:
			kinds["tight_temporal"] = struct{}{}
		case strings.HasPrefix(string(code), "shared_"):
			kinds["shared_pivot"] = struct{}{}
		}
	}
	reasonDiversity := float64(len(kinds)) / 3

	sourceDiversity := 0.0
	if n := len(thread.SourceTypes); n > 1 {
		sourceDiversity = float64(n-1) / 2
	}
	sourceDiversity = clamp(sourceDiversity, 0, 1)

	edgeStrength := 0.0
	if len(thread.Evidence) > 0 {
		var total float64
		for _, ev := range thread.Evidence {
			total += clamp(float64(len(ev.ReasonCodes))/3, 0, 1)
		}
		edgeStrength = total / float64(len(thread.Evidence))
	}

	return clamp(0.4*reasonDiversity+0.3*sourceDiversity+0.3*edgeStrength, 0, 1)
}
