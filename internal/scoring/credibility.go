package scoring

import (
	"sort"
	"sync"
	"time"
)

// SourceOutcome is one analyst verdict on a record from a given source,
// fed back into the credibility estimator.
type SourceOutcome struct {
	SourceID     string
	TruePositive bool
	Missed       bool // analyst-identified miss, counts against recall
	ObservedAt   time.Time
}

// SourceStats summarizes a source's historical accuracy.
type SourceStats struct {
	SourceID      string    `json:"source_id"`
	TruePositives int       `json:"true_positives"`
	FalsePositive int       `json:"false_positives"`
	Missed        int       `json:"missed"`
	Credibility   float64   `json:"credibility"`
	Precision     float64   `json:"precision"`
	Recall        float64   `json:"recall"`
	F1            float64   `json:"f1"`
	LastSeen      time.Time `json:"last_seen"`
}

// CredibilityEstimator maintains a Beta posterior per source. The estimate
// alpha/(alpha+beta) starts from a weak symmetric prior so unseen sources
// sit at 0.5 and single verdicts move the estimate gently.
type CredibilityEstimator struct {
	mu         sync.RWMutex
	priorAlpha float64
	priorBeta  float64
	sources    map[string]*sourceTally
}

type sourceTally struct {
	tp       int
	fp       int
	missed   int
	lastSeen time.Time
}

func NewCredibilityEstimator(priorAlpha, priorBeta float64) *CredibilityEstimator {
	if priorAlpha <= 0 {
		priorAlpha = 2.0
	}
	if priorBeta <= 0 {
		priorBeta = 2.0
	}
	return &CredibilityEstimator{
		priorAlpha: priorAlpha,
		priorBeta:  priorBeta,
		sources:    make(map[string]*sourceTally),
	}
}

// Record folds one verdict into the source's posterior.
func (e *CredibilityEstimator) Record(outcome SourceOutcome) {
	if outcome.SourceID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tally, ok := e.sources[outcome.SourceID]
	if !ok {
		tally = &sourceTally{}
		e.sources[outcome.SourceID] = tally
	}
	switch {
	case outcome.Missed:
		tally.missed++
	case outcome.TruePositive:
		tally.tp++
	default:
		tally.fp++
	}
	if outcome.ObservedAt.After(tally.lastSeen) {
		tally.lastSeen = outcome.ObservedAt
	}
}

// Estimate returns the posterior-mean credibility for a source in [0,1].
func (e *CredibilityEstimator) Estimate(sourceID string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tally := e.sources[sourceID]
	alpha, beta := e.priorAlpha, e.priorBeta
	if tally != nil {
		alpha += float64(tally.tp)
		beta += float64(tally.fp)
	}
	return alpha / (alpha + beta)
}

// Stats reports per-source accuracy, highest credibility first.
func (e *CredibilityEstimator) Stats() []SourceStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]SourceStats, 0, len(e.sources))
	for id, tally := range e.sources {
		stats := SourceStats{
			SourceID:      id,
			TruePositives: tally.tp,
			FalsePositive: tally.fp,
			Missed:        tally.missed,
			LastSeen:      tally.lastSeen,
		}
		alpha := e.priorAlpha + float64(tally.tp)
		beta := e.priorBeta + float64(tally.fp)
		stats.Credibility = alpha / (alpha + beta)
		if tally.tp+tally.fp > 0 {
			stats.Precision = float64(tally.tp) / float64(tally.tp+tally.fp)
		}
		if tally.tp+tally.missed > 0 {
			stats.Recall = float64(tally.tp) / float64(tally.tp+tally.missed)
		}
		if stats.Precision+stats.Recall > 0 {
			stats.F1 = 2 * stats.Precision * stats.Recall / (stats.Precision + stats.Recall)
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Credibility == out[j].Credibility {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].Credibility > out[j].Credibility
	})
	return out
}
