// Package report renders analyst-facing case packs for investigation
// threads.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/escalation"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/utils"
)

// CasePack renders a thread as handoff-ready markdown. Every claim in the
// output traces back to an evidence entry or a scored member, so the pack
// stands on its own in a ticketing system.
func CasePack(thread models.Thread, records map[string]models.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Case Pack: %s\n\n", thread.ID)
	fmt.Fprintf(&b, "**Subject:** %s\n\n", thread.Label)
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Recommended tier | %s |\n", thread.RecommendedTier)
	fmt.Fprintf(&b, "| Aggregate score | %.1f |\n", thread.AggregateScore)
	fmt.Fprintf(&b, "| Confidence | %.2f |\n", thread.Confidence)
	fmt.Fprintf(&b, "| Members | %d |\n", thread.MemberCount())
	fmt.Fprintf(&b, "| Window | %s to %s (%.0f min) |\n",
		thread.WindowStart.UTC().Format(time.RFC3339),
		thread.WindowEnd.UTC().Format(time.RFC3339),
		utils.DurationMinutes(thread.WindowStart, thread.WindowEnd))
	sources := make([]string, 0, len(thread.SourceTypes))
	for _, src := range thread.SourceTypes {
		sources = append(sources, string(src))
	}
	fmt.Fprintf(&b, "| Source types | %s |\n\n", strings.Join(sources, ", "))

	decision := escalation.DecideThread(thread)
	b.WriteString("## Response\n\n")
	fmt.Fprintf(&b, "%s\n\n", decision.Rationale)

	if len(thread.SharedPivots) > 0 {
		b.WriteString("## Shared Pivots\n\n")
		for _, pivot := range thread.SharedPivots {
			fmt.Fprintf(&b, "- `%s`\n", pivot.Key())
		}
		b.WriteString("\n")
	}

	b.WriteString("## Timeline\n\n")
	for _, id := range thread.Members {
		rec, ok := records[id]
		if !ok {
			fmt.Fprintf(&b, "- %s (record unavailable)\n", id)
			continue
		}
		fmt.Fprintf(&b, "- %s `%s` [%s] score %.1f (%s)",
			rec.Timestamp.UTC().Format(time.RFC3339), rec.ID, rec.Source, rec.RiskScore, rec.Tier)
		if rec.VendorFlagged {
			b.WriteString(" **flagged for vendor review**")
		}
		b.WriteString("\n")
		for _, factor := range topFactors(rec.Factors, 3) {
			fmt.Fprintf(&b, "  - %s: %.1f (%s)\n", factor.Name, factor.Contribution, factor.Detail)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Correlation Evidence\n\n")
	for _, ev := range thread.Evidence {
		codes := make([]string, 0, len(ev.ReasonCodes))
		for _, code := range ev.ReasonCodes {
			codes = append(codes, string(code))
		}
		pivots := make([]string, 0, len(ev.SharedPivots))
		for _, pivot := range ev.SharedPivots {
			pivots = append(pivots, pivot.Key())
		}
		fmt.Fprintf(&b, "- `%s` <> `%s`: %s", ev.RecordA, ev.RecordB, strings.Join(codes, ", "))
		if len(pivots) > 0 {
			fmt.Fprintf(&b, " via %s", strings.Join(pivots, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func topFactors(factors []models.FactorContribution, limit int) []models.FactorContribution {
	if len(factors) <= limit {
		return factors
	}
	return factors[:limit]
}
