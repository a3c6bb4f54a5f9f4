package engine

import (
	"sort"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// BuildPairEvidence explains one correlation edge. Every emitted reason code
// is backed by the literal shared pivots or timestamps that triggered it.
func BuildPairEvidence(a, b models.Record, shared []models.Pivot, tightTemporal time.Duration) models.PairEvidence {
	ev := models.PairEvidence{
		RecordA:      a.ID,
		RecordB:      b.ID,
		SharedPivots: shared,
	}
	if ev.RecordA > ev.RecordB {
		ev.RecordA, ev.RecordB = ev.RecordB, ev.RecordA
	}

	codeSet := make(map[models.ReasonCode]struct{}, len(shared)+2)
	for _, pivot := range shared {
		if code, ok := models.SharedPivotReason(pivot.Type); ok {
			codeSet[code] = struct{}{}
		}
	}
	if a.Source != b.Source {
		codeSet[models.ReasonCrossSource] = struct{}{}
	}
	if !a.Timestamp.IsZero() && !b.Timestamp.IsZero() {
		gap := a.Timestamp.Sub(b.Timestamp)
		if gap < 0 {
			gap = -gap
		}
		if gap <= tightTemporal {
			codeSet[models.ReasonTightTemporal] = struct{}{}
		}
	}

	ev.ReasonCodes = make([]models.ReasonCode, 0, len(codeSet))
	for code := range codeSet {
		ev.ReasonCodes = append(ev.ReasonCodes, code)
	}
	sort.Slice(ev.ReasonCodes, func(i, j int) bool { return ev.ReasonCodes[i] < ev.ReasonCodes[j] })
	return ev
}
