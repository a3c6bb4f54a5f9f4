package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/report"
	"github.com/regimeiq/osint-threat-monitor/internal/repo"
	"github.com/regimeiq/osint-threat-monitor/internal/scoring"
	"github.com/regimeiq/osint-threat-monitor/internal/services"
	"github.com/regimeiq/osint-threat-monitor/internal/utils"
)

type handlers struct {
	logger  *slog.Logger
	service *services.CorrelationService
}

func newHandlers(logger *slog.Logger, service *services.CorrelationService) *handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &handlers{logger: logger, service: service}
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "SERVING",
		"latency_p95": h.service.LatencyP95().String(),
	})
}

// correlateRequest carries the window bounds as RFC3339 strings so curl
// payloads stay readable.
type correlateRequest struct {
	WindowStart    string  `json:"window_start"`
	WindowEnd      string  `json:"window_end"`
	WindowHours    float64 `json:"window_hours"`
	MinClusterSize int     `json:"min_cluster_size"`
}

func (r correlateRequest) toModel() (models.CorrelateRequest, error) {
	req := models.CorrelateRequest{
		WindowHours:    r.WindowHours,
		MinClusterSize: r.MinClusterSize,
	}
	if r.WindowStart != "" {
		start, err := utils.ParseRFC3339(r.WindowStart)
		if err != nil {
			return req, err
		}
		req.WindowStart = start
	}
	if r.WindowEnd != "" {
		end, err := utils.ParseRFC3339(r.WindowEnd)
		if err != nil {
			return req, err
		}
		req.WindowEnd = end
	}
	if !req.WindowStart.IsZero() && !req.WindowEnd.IsZero() && req.WindowEnd.Before(req.WindowStart) {
		req.WindowStart, req.WindowEnd = req.WindowEnd, req.WindowStart
	}
	return req, nil
}

func (h *handlers) correlate(c *gin.Context) {
	var body correlateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := body.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Correlate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repo.ErrRunInProgress) {
			c.Header("Retry-After", "5")
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
			return
		}
		h.logger.Error("correlate failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "correlation run failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) ingest(c *gin.Context) {
	var records []models.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accepted, err := h.service.Ingest(c.Request.Context(), records)
	if err != nil {
		h.logger.Error("ingest failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record sink unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"accepted": accepted,
		"dropped":  len(records) - accepted,
	})
}

// sourceVerdictRequest is one analyst verdict on a source's output.
type sourceVerdictRequest struct {
	SourceID     string `json:"source_id"`
	TruePositive bool   `json:"true_positive"`
	Missed       bool   `json:"missed"`
}

func (h *handlers) sourceVerdict(c *gin.Context) {
	var body sourceVerdictRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.SourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id is required"})
		return
	}
	credibility, err := h.service.RecordVerdict(scoring.SourceOutcome{
		SourceID:     body.SourceID,
		TruePositive: body.TruePositive,
		Missed:       body.Missed,
		ObservedAt:   time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("verdict failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verdict not recorded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source_id":   body.SourceID,
		"credibility": credibility,
	})
}

func (h *handlers) sourceCredibility(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.service.SourceStats()})
}

func (h *handlers) score(c *gin.Context) {
	var rec models.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.Score(c.Request.Context(), rec)
	if err != nil {
		h.logger.Error("score failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scoring failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) windowResult(c *gin.Context) {
	req, err := windowQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.WindowResult(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no result for window"})
			return
		}
		h.logger.Error("window result read failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) thread(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *handlers) casePack(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}

	records := make(map[string]models.Record, len(thread.Members))
	req, err := windowQuery(c)
	if err == nil {
		if result, err := h.service.WindowResult(c.Request.Context(), req); err == nil {
			for _, rec := range result.ScoredRecords {
				records[rec.ID] = rec
			}
		}
	}

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.CasePack(thread, records)))
}

func (h *handlers) loadThread(c *gin.Context) (models.Thread, bool) {
	thread, err := h.service.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
			return models.Thread{}, false
		}
		h.logger.Error("thread read failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return models.Thread{}, false
	}
	return thread, true
}

func (h *handlers) disagreementRate(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id is required"})
		return
	}
	records, err := h.service.Disagreements(c.Request.Context(), runID)
	if err != nil {
		h.logger.Error("disagreement read failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":     runID,
		"mismatched": len(records),
		"records":    records,
	})
}

// windowQuery reads window bounds from query parameters, mirroring the
// correlate body fields.
func windowQuery(c *gin.Context) (models.CorrelateRequest, error) {
	var req models.CorrelateRequest
	start, err := utils.ParseRFC3339(c.Query("window_start"))
	if err != nil {
		return req, err
	}
	end, err := utils.ParseRFC3339(c.Query("window_end"))
	if err != nil {
		return req, err
	}
	if end.Before(start) {
		start, end = end, start
	}
	req.WindowStart = start
	req.WindowEnd = end
	return req, nil
}
