package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the ordered severity bucket derived from a numeric score.
type Tier int

const (
	TierLow Tier = iota
	TierGuarded
	TierElevated
	TierHigh
	TierCritical
)

var tierNames = [...]string{"LOW", "GUARDED", "ELEVATED", "HIGH", "CRITICAL"}

func (t Tier) String() string {
	if t < TierLow || t > TierCritical {
		return "LOW"
	}
	return tierNames[t]
}

// Escalate raises the tier by the given number of steps, saturating at CRITICAL.
func (t Tier) Escalate(steps int) Tier {
	raised := t + Tier(steps)
	if raised > TierCritical {
		return TierCritical
	}
	if raised < TierLow {
		return TierLow
	}
	return raised
}

// ParseTier resolves a tier label; the bool is false for unknown labels.
func ParseTier(raw string) (Tier, bool) {
	label := strings.ToUpper(strings.TrimSpace(raw))
	for i, name := range tierNames {
		if name == label {
			return Tier(i), true
		}
	}
	return TierLow, false
}

// MarshalJSON serializes tiers as their stable string labels.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the stable string labels.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, ok := ParseTier(label)
	if !ok {
		return fmt.Errorf("unknown tier %q", label)
	}
	*t = parsed
	return nil
}
