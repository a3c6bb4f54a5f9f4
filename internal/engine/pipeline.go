package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/config"
	"github.com/regimeiq/osint-threat-monitor/internal/disagreement"
	"github.com/regimeiq/osint-threat-monitor/internal/extract"
	"github.com/regimeiq/osint-threat-monitor/internal/index"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/repo"
	"github.com/regimeiq/osint-threat-monitor/internal/scoring"
	"github.com/regimeiq/osint-threat-monitor/internal/utils"
)

// Pipeline runs the full correlate-score-persist cycle for one window.
type Pipeline struct {
	cfg         *config.Config
	logger      *slog.Logger
	source      repo.RecordSource
	store       repo.ResultStore
	correlator  *Correlator
	scorer      *scoring.Scorer
	credibility *scoring.CredibilityEstimator
	monitor     *disagreement.Monitor
	now         func() time.Time
}

// NewPipeline wires the pipeline stages. monitor may be nil to disable
// disagreement tracking.
func NewPipeline(cfg *config.Config, logger *slog.Logger, source repo.RecordSource, store repo.ResultStore, monitor *disagreement.Monitor) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	scorer := scoring.NewScorer(cfg.Scoring)
	credibility := scoring.NewCredibilityEstimator(0, 0)
	scorer.UseCredibility(credibility)
	return &Pipeline{
		cfg:         cfg,
		logger:      logger,
		source:      source,
		store:       store,
		correlator:  NewCorrelator(logger, cfg.Correlation.TightTemporal),
		scorer:      scorer,
		credibility: credibility,
		monitor:     monitor,
		now:         time.Now,
	}
}

// Credibility exposes the per-source estimator so verdict feedback can be
// folded in from outside the run path.
func (p *Pipeline) Credibility() *scoring.CredibilityEstimator {
	return p.credibility
}

// Run executes one correlation run. The window is locked for the run's
// duration; a concurrent run over the same window fails fast with
// repo.ErrRunInProgress. Rerunning an unchanged window replaces the stored
// result with an identical one.
func (p *Pipeline) Run(ctx context.Context, req models.CorrelateRequest) (models.CorrelateResult, error) {
	req = p.normalize(req)
	windowKey := req.WindowKey()
	runID := runIDFor(windowKey)
	lockToken := p.lockToken(windowKey)

	lockTTL := p.cfg.Redis.RunLockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	if err := p.store.AcquireRunLock(ctx, windowKey, lockToken, lockTTL); err != nil {
		return models.CorrelateResult{}, err
	}
	defer func() {
		if err := p.store.ReleaseRunLock(context.WithoutCancel(ctx), windowKey, lockToken); err != nil {
			p.logger.Warn("run lock release failed", slog.String("window", windowKey), slog.Any("error", err))
		}
	}()

	raw, err := p.source.FetchRecords(ctx, req.WindowStart, req.WindowEnd)
	if err != nil {
		return models.CorrelateResult{}, utils.NewAppError("engine.Run", "record fetch failed", err)
	}

	records, warnings := p.sanitize(raw)
	for i := range records {
		p.scorer.ScoreRecord(&records[i])
	}

	idx := index.Build(records)

	threads := p.correlator.Correlate(idx, req)
	byID := make(map[string]models.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	createdAt := p.now().UTC()
	for i := range threads {
		p.scorer.ScoreThread(&threads[i], byID)
		threads[i].CreatedAt = createdAt
	}

	result := models.CorrelateResult{
		RunID:         runID,
		Threads:       threads,
		ScoredRecords: records,
		Warnings:      warnings,
	}

	if p.monitor != nil {
		rate, err := p.monitor.Compare(ctx, runID, records)
		if err != nil {
			return models.CorrelateResult{}, utils.NewAppError("engine.Run", "disagreement tracking failed", err)
		}
		result.Disagreement = rate
	}

	// A canceled run must not half-replace the previous window result.
	if err := ctx.Err(); err != nil {
		return models.CorrelateResult{}, err
	}
	if err := p.store.ReplaceWindowResult(ctx, windowKey, result); err != nil {
		return models.CorrelateResult{}, utils.NewAppError("engine.Run", "result store failed", err)
	}

	p.logger.Info("correlation run complete",
		slog.String("run_id", runID),
		slog.String("window", windowKey),
		slog.Int("records", len(records)),
		slog.Int("threads", len(threads)),
		slog.Int("warnings", len(warnings)))
	return result, nil
}

// ScoreOne scores a single record synchronously without touching storage.
func (p *Pipeline) ScoreOne(rec models.Record) models.ScoreResult {
	p.scorer.ScoreRecord(&rec)
	return models.ScoreResult{
		Score:   rec.RiskScore,
		Tier:    rec.Tier,
		Factors: rec.Factors,
		Flagged: rec.VendorFlagged,
	}
}

func (p *Pipeline) normalize(req models.CorrelateRequest) models.CorrelateRequest {
	if req.WindowHours <= 0 {
		req.WindowHours = p.cfg.Correlation.DefaultWindowHours
	}
	if req.MinClusterSize < 2 {
		req.MinClusterSize = p.cfg.Correlation.DefaultMinClusterSize
		if req.MinClusterSize < 2 {
			req.MinClusterSize = 2
		}
	}
	if req.WindowEnd.IsZero() {
		req.WindowEnd = p.now().UTC().Truncate(time.Second)
	}
	if req.WindowStart.IsZero() {
		req.WindowStart = req.WindowEnd.Add(-time.Duration(req.WindowHours * float64(time.Hour)))
	}
	return req
}

// sanitize filters records the engine cannot use at all and flags the rest.
// A record without an id is dropped; a record with a zero timestamp or no
// usable pivots is kept for scoring but will never join a thread. Pivots
// outside the known vocabulary are removed.
func (p *Pipeline) sanitize(raw []models.Record) ([]models.Record, []string) {
	records := make([]models.Record, 0, len(raw))
	var warnings []string
	seen := make(map[string]struct{}, len(raw))

	for _, rec := range raw {
		if rec.ID == "" {
			warnings = append(warnings, "dropped record without id")
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("dropped duplicate record %s", rec.ID))
			continue
		}
		seen[rec.ID] = struct{}{}
		rec = extract.Enrich(rec)

		kept := rec.Pivots[:0:0]
		for _, pivot := range rec.Pivots {
			if models.KnownPivotType(pivot.Type) && pivot.Value != "" {
				kept = append(kept, pivot)
				continue
			}
			warnings = append(warnings, fmt.Sprintf("record %s: ignored pivot %q", rec.ID, pivot.Key()))
		}
		rec.Pivots = kept

		if rec.Timestamp.IsZero() {
			warnings = append(warnings, fmt.Sprintf("record %s: missing timestamp, excluded from clustering", rec.ID))
		} else if len(rec.Pivots) == 0 {
			warnings = append(warnings, fmt.Sprintf("record %s: no usable pivots, excluded from clustering", rec.ID))
		}
		records = append(records, rec)
	}
	return records, warnings
}

// runIDFor is a pure function of the window, so rerunning the same window
// reuses the same id and per-run idempotency keys keep deduplicating.
func runIDFor(windowKey string) string {
	h := sha256.Sum256([]byte(windowKey))
	return "run-" + hex.EncodeToString(h[:])[:12]
}

// lockToken identifies this holder of the window lock. Unlike the run id
// it is salted with the start instant so a concurrent run over the same
// window cannot pass the store's holder check.
func (p *Pipeline) lockToken(windowKey string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s@%d", windowKey, p.now().UnixNano())))
	return "lock-" + hex.EncodeToString(h[:])[:12]
}
