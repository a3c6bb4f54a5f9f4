package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed correlation runs.
	OutcomeSuccess = "success"
	// OutcomeError labels failed runs (pipeline or dependency issues).
	OutcomeError = "error"
	// OutcomeLocked labels runs rejected because the window was held.
	OutcomeLocked = "locked"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "correlation_runs_total",
			Help:      "Total number of correlation runs handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "osint_monitor",
			Name:      "correlation_run_seconds",
			Help:      "Correlation run latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
		},
	)

	threadsPerRun = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "osint_monitor",
			Name:      "threads_per_run",
			Help:      "Investigation threads produced per completed run.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	recordsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "records_scored_total",
			Help:      "Records scored, partitioned by source type.",
		},
		[]string{"source_type"},
	)

	disagreementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "tier_disagreements_total",
			Help:      "Rules-vs-secondary tier mismatches recorded.",
		},
	)
)

// Register attaches the engine's collectors to the supplied Prometheus
// registerer. Double registration is tolerated.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		threadsPerRun,
		recordsScoredTotal,
		disagreementsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records one correlation run's duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeLocked:
	default:
		outcome = OutcomeSuccess
	}
	runsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveThreads records the thread count of a completed run.
func ObserveThreads(count int) {
	threadsPerRun.Observe(float64(count))
}

// RecordScored increments the per-source scoring counter.
func RecordScored(sourceType string) {
	recordsScoredTotal.WithLabelValues(sourceType).Inc()
}

// DisagreementRecorded increments the mismatch counter.
func DisagreementRecorded() {
	disagreementsTotal.Inc()
}
