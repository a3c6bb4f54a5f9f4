package scoring

import "math"

// Frequency factor bounds for the general formula.
const (
	frequencyFloor = 1.0
	frequencyCeil  = 4.0
	stdDevFloor    = 0.5
	zSlope         = 0.75
	minHistoryDays = 3
)

// FrequencyFactor turns a mention count and its daily history into the
// burst multiplier for the general formula. With at least three days of
// history it standardizes against the baseline (a std-dev floor keeps
// quiet baselines from exploding the z-score); with less it falls back to
// a plain ratio against the mean. Output is always within [1,4].
func FrequencyFactor(current float64, dailyHistory []float64) float64 {
	if current < 0 {
		current = 0
	}
	if len(dailyHistory) < minHistoryDays {
		mean := meanOf(dailyHistory)
		if mean < 1 {
			mean = 1
		}
		return clamp(current/mean, frequencyFloor, frequencyCeil)
	}

	mean := meanOf(dailyHistory)
	std := stdDevOf(dailyHistory, mean)
	if std < stdDevFloor {
		std = stdDevFloor
	}
	z := (current - mean) / std
	return clamp(1+zSlope*z, frequencyFloor, frequencyCeil)
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDevOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
