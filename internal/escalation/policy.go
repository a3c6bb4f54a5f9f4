// Package escalation maps scored threads to operational response decisions.
package escalation

import (
	"fmt"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// Decision is the routing outcome for one thread. A zero ResponseWindow
// means no clock is running.
type Decision struct {
	Tier           models.Tier   `json:"tier"`
	Escalate       bool          `json:"escalate"`
	ResponseWindow time.Duration `json:"response_window"`
	Rationale      string        `json:"rationale"`
}

// Response windows per tier. Anything below ELEVATED carries no clock.
const (
	criticalWindow = 30 * time.Minute
	highWindow     = 4 * time.Hour
	elevatedWindow = 24 * time.Hour
)

// Decide is a pure function of the recommended tier and confidence; calling
// it twice with the same inputs yields the same decision.
func Decide(tier models.Tier, confidence float64) Decision {
	d := Decision{Tier: tier}
	switch tier {
	case models.TierCritical:
		d.Escalate = true
		d.ResponseWindow = criticalWindow
	case models.TierHigh:
		d.Escalate = true
		d.ResponseWindow = highWindow
	case models.TierElevated:
		d.Escalate = true
		d.ResponseWindow = elevatedWindow
	}
	if d.Escalate {
		d.Rationale = fmt.Sprintf("%s tier at confidence %.2f requires response within %s",
			tier, confidence, d.ResponseWindow)
	} else {
		d.Rationale = fmt.Sprintf("%s tier at confidence %.2f is below the escalation cutoff",
			tier, confidence)
	}
	return d
}

// DecideThread applies the policy to a scored thread.
func DecideThread(thread models.Thread) Decision {
	return Decide(thread.RecommendedTier, thread.Confidence)
}
