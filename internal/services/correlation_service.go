package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/disagreement"
	"github.com/regimeiq/osint-threat-monitor/internal/engine"
	"github.com/regimeiq/osint-threat-monitor/internal/metrics"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/repo"
	"github.com/regimeiq/osint-threat-monitor/internal/scoring"
	"github.com/regimeiq/osint-threat-monitor/internal/utils"
)

// CorrelationService is the transport-facing facade over the pipeline and
// the result store. It owns run metrics and latency bookkeeping so the
// handlers stay thin.
type CorrelationService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	store     repo.ResultStore
	sink      repo.RecordSink
	monitor   *disagreement.Monitor
	latencies *utils.LatencyTracker
}

func NewCorrelationService(logger *slog.Logger, pipeline *engine.Pipeline, store repo.ResultStore, sink repo.RecordSink, monitor *disagreement.Monitor) *CorrelationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorrelationService{
		logger:    logger,
		pipeline:  pipeline,
		store:     store,
		sink:      sink,
		monitor:   monitor,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Ingest accepts collector records into the sink feeding future runs.
// Records without an id are rejected up front; the run pipeline applies the
// remaining sanitation at correlate time.
func (s *CorrelationService) Ingest(_ context.Context, records []models.Record) (int, error) {
	if s.sink == nil {
		return 0, utils.NewAppError("services.Ingest", "record sink not configured", nil)
	}
	accepted := records[:0:0]
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		accepted = append(accepted, rec)
	}
	s.sink.PutRecords(accepted...)
	if dropped := len(records) - len(accepted); dropped > 0 {
		s.logger.Warn("ingest dropped records without id", slog.Int("dropped", dropped))
	}
	return len(accepted), nil
}

// RecordVerdict folds one analyst verdict into the per-source credibility
// estimator and returns the updated estimate.
func (s *CorrelationService) RecordVerdict(outcome scoring.SourceOutcome) (float64, error) {
	if s.pipeline == nil {
		return 0, utils.NewAppError("services.RecordVerdict", "pipeline not configured", nil)
	}
	est := s.pipeline.Credibility()
	est.Record(outcome)
	return est.Estimate(outcome.SourceID), nil
}

// SourceStats reports per-source accuracy, highest credibility first.
func (s *CorrelationService) SourceStats() []scoring.SourceStats {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.Credibility().Stats()
}

// Correlate runs the pipeline for the window and records run metrics.
func (s *CorrelationService) Correlate(ctx context.Context, req models.CorrelateRequest) (models.CorrelateResult, error) {
	if s.pipeline == nil {
		return models.CorrelateResult{}, utils.NewAppError("services.Correlate", "pipeline not configured", nil)
	}

	start := time.Now()
	result, err := s.pipeline.Run(ctx, req)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, repo.ErrRunInProgress) {
			metrics.ObserveRun(duration, metrics.OutcomeLocked)
			return models.CorrelateResult{}, err
		}
		metrics.ObserveRun(duration, metrics.OutcomeError)
		s.logger.Error("correlation run failed", slog.Any("error", err))
		return models.CorrelateResult{}, err
	}

	s.latencies.Observe(duration)
	metrics.ObserveRun(duration, metrics.OutcomeSuccess)
	metrics.ObserveThreads(len(result.Threads))
	for _, rec := range result.ScoredRecords {
		metrics.RecordScored(string(rec.Source))
	}
	for i := 0; i < result.Disagreement.Mismatched; i++ {
		metrics.DisagreementRecorded()
	}
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("correlation latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
	return result, nil
}

// Score evaluates a single record without persisting anything.
func (s *CorrelationService) Score(_ context.Context, rec models.Record) (models.ScoreResult, error) {
	if s.pipeline == nil {
		return models.ScoreResult{}, utils.NewAppError("services.Score", "pipeline not configured", nil)
	}
	result := s.pipeline.ScoreOne(rec)
	metrics.RecordScored(string(rec.Source))
	return result, nil
}

// WindowResult returns the stored result for a window.
func (s *CorrelationService) WindowResult(ctx context.Context, req models.CorrelateRequest) (models.CorrelateResult, error) {
	return s.store.WindowResult(ctx, req.WindowKey())
}

// Thread fetches one stored thread by id.
func (s *CorrelationService) Thread(ctx context.Context, threadID string) (models.Thread, error) {
	return s.store.Thread(ctx, threadID)
}

// Disagreements lists persisted tier mismatches for a run.
func (s *CorrelationService) Disagreements(ctx context.Context, runID string) ([]models.DisagreementRecord, error) {
	if s.monitor == nil {
		return nil, nil
	}
	return s.monitor.Records(ctx, runID)
}

// LatencyP95 returns the current p95 run latency.
func (s *CorrelationService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
