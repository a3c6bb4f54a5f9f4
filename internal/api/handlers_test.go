package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/config"
	"github.com/regimeiq/osint-threat-monitor/internal/disagreement"
	"github.com/regimeiq/osint-threat-monitor/internal/engine"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/repo"
	"github.com/regimeiq/osint-threat-monitor/internal/services"
)

var testWindowStart = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func testServer(t *testing.T, records ...models.Record) (*Server, *repo.MemoryStore) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	store := repo.NewMemoryStore()
	store.PutRecords(records...)
	monitor := disagreement.NewMonitor(nil, nil, store)
	pipeline := engine.NewPipeline(cfg, nil, store, store, monitor)
	service := services.NewCorrelationService(nil, pipeline, store, store, monitor)
	return NewServer(cfg.Server, nil, service), store
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func scenarioRecords() []models.Record {
	base := testWindowStart.Add(6 * time.Hour)
	user := models.Pivot{Type: models.PivotUserID, Value: "emp-7415"}
	vendor := models.Pivot{Type: models.PivotVendorID, Value: "sc-004"}
	domain := models.Pivot{Type: models.PivotDomain, Value: "aster-cloud.example"}
	return []models.Record{
		{
			ID: "ext-1", Source: models.SourceExternalSignal, Timestamp: base,
			Pivots:   []models.Pivot{user, vendor, domain},
			External: &models.ExternalFeatures{KeywordWeight: 0.9, FrequencyFactor: 2, SourceCredibility: 0.9, RecencyHours: 2},
		},
		{
			ID: "ins-1", Source: models.SourceInsiderTelemetry, Timestamp: base.Add(30 * time.Minute),
			Pivots:  []models.Pivot{user},
			Insider: &models.InsiderIndicators{OffHoursAccess: 0.9, DataMovement: 0.8, AccessMismatch: 0.7, CommunicationShift: 0.6},
		},
		{
			ID: "ven-1", Source: models.SourceVendorProfile, Timestamp: base.Add(45 * time.Minute),
			Pivots: []models.Pivot{vendor, domain},
			Vendor: &models.VendorExposure{GeographicExposure: 0.9, Concentration: 0.8, PrivilegeScope: 0.7, DataSensitivity: 0.9, CompliancePosture: 0.6},
		},
	}
}

func correlateBody() map[string]any {
	return map[string]any{
		"window_start":     testWindowStart.Format(time.RFC3339),
		"window_end":       testWindowStart.Add(72 * time.Hour).Format(time.RFC3339),
		"window_hours":     72,
		"min_cluster_size": 2,
	}
}

func TestCorrelateEndpoint(t *testing.T) {
	server, _ := testServer(t, scenarioRecords()...)

	w := doJSON(t, server, http.MethodPost, "/api/v1/correlate", correlateBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var result models.CorrelateResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Threads) != 1 {
		t.Fatalf("threads = %d", len(result.Threads))
	}
	if result.Threads[0].RecommendedTier != models.TierCritical {
		t.Fatalf("tier = %s", result.Threads[0].RecommendedTier)
	}
}

func TestCorrelateEndpointLockConflict(t *testing.T) {
	server, store := testServer(t, scenarioRecords()...)

	req := models.CorrelateRequest{
		WindowStart: testWindowStart,
		WindowEnd:   testWindowStart.Add(72 * time.Hour),
	}
	if err := store.AcquireRunLock(context.Background(), req.WindowKey(), "other", time.Minute); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	w := doJSON(t, server, http.MethodPost, "/api/v1/correlate", correlateBody())
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestCorrelateEndpointBadTimestamp(t *testing.T) {
	server, _ := testServer(t)
	body := correlateBody()
	body["window_start"] = "yesterday-ish"
	w := doJSON(t, server, http.MethodPost, "/api/v1/correlate", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestScoreEndpoint(t *testing.T) {
	server, _ := testServer(t)

	rec := models.Record{
		ID:     "one-off",
		Source: models.SourceVendorProfile,
		Vendor: &models.VendorExposure{GeographicExposure: 0.9, Concentration: 0.8, PrivilegeScope: 0.7, DataSensitivity: 0.9, CompliancePosture: 0.6},
	}
	w := doJSON(t, server, http.MethodPost, "/api/v1/score", rec)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var result models.ScoreResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Flagged {
		t.Fatalf("vendor at %v not flagged", result.Score)
	}
	if result.Tier != models.TierHigh {
		t.Fatalf("tier = %s", result.Tier)
	}
}

func TestThreadEndpoints(t *testing.T) {
	server, _ := testServer(t, scenarioRecords()...)

	w := doJSON(t, server, http.MethodPost, "/api/v1/correlate", correlateBody())
	if w.Code != http.StatusOK {
		t.Fatalf("correlate: %d", w.Code)
	}
	var result models.CorrelateResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	threadID := result.Threads[0].ID

	w = doJSON(t, server, http.MethodGet, "/api/v1/threads/"+threadID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("thread get: %d", w.Code)
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/threads/soi-nope/casepack", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing thread: %d, want 404", w.Code)
	}

	query := "?window_start=" + testWindowStart.Format(time.RFC3339) +
		"&window_end=" + testWindowStart.Add(72*time.Hour).Format(time.RFC3339)
	w = doJSON(t, server, http.MethodGet, "/api/v1/threads/"+threadID+"/casepack"+query, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("casepack: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), threadID) {
		t.Fatal("casepack missing thread id")
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := testServer(t)
	w := doJSON(t, server, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "SERVING") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestDisagreementRateEndpoint(t *testing.T) {
	records := scenarioRecords()
	critical := models.TierCritical
	records[0].SecondaryTier = &critical
	server, _ := testServer(t, records...)

	w := doJSON(t, server, http.MethodPost, "/api/v1/correlate", correlateBody())
	if w.Code != http.StatusOK {
		t.Fatalf("correlate: %d", w.Code)
	}
	var result models.CorrelateResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/disagreements/rate?run_id="+result.RunID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rate: %d", w.Code)
	}
	var rate struct {
		Mismatched int `json:"mismatched"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rate); err != nil {
		t.Fatalf("decode rate: %v", err)
	}
	if rate.Mismatched != 1 {
		t.Fatalf("mismatched = %d", rate.Mismatched)
	}

	w = doJSON(t, server, http.MethodGet, "/api/v1/disagreements/rate", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing run_id: %d, want 400", w.Code)
	}
}

func TestIngestEndpointFeedsCorrelation(t *testing.T) {
	server, _ := testServer(t) // no pre-seeded records

	w := doJSON(t, server, http.MethodPost, "/api/v1/records", scenarioRecords())
	if w.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d, body %s", w.Code, w.Body.String())
	}
	var ack struct {
		Accepted int `json:"accepted"`
		Dropped  int `json:"dropped"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Accepted != 3 || ack.Dropped != 0 {
		t.Fatalf("ack = %+v", ack)
	}

	w = doJSON(t, server, http.MethodPost, "/api/v1/correlate", correlateBody())
	if w.Code != http.StatusOK {
		t.Fatalf("correlate after ingest: %d, body %s", w.Code, w.Body.String())
	}
	var result models.CorrelateResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(result.Threads))
	}
}

func TestIngestEndpointDropsMissingIDs(t *testing.T) {
	server, _ := testServer(t)

	records := []models.Record{
		{Source: models.SourceExternalSignal}, // no id
		{ID: "ok-1", Source: models.SourceExternalSignal},
	}
	w := doJSON(t, server, http.MethodPost, "/api/v1/records", records)
	if w.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d", w.Code)
	}
	var ack struct {
		Accepted int `json:"accepted"`
		Dropped  int `json:"dropped"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Accepted != 1 || ack.Dropped != 1 {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestSourceVerdictUpdatesScoring(t *testing.T) {
	server, _ := testServer(t)

	for i := 0; i < 6; i++ {
		w := doJSON(t, server, http.MethodPost, "/api/v1/sources/verdict",
			map[string]any{"source_id": "feed-a", "true_positive": true})
		if w.Code != http.StatusOK {
			t.Fatalf("verdict: %d, body %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, server, http.MethodGet, "/api/v1/sources/credibility", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("credibility: %d", w.Code)
	}
	var stats struct {
		Sources []struct {
			SourceID    string  `json:"source_id"`
			Credibility float64 `json:"credibility"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats.Sources) != 1 || stats.Sources[0].SourceID != "feed-a" {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Sources[0].Credibility <= 0.75 {
		t.Fatalf("credibility = %v after six true positives", stats.Sources[0].Credibility)
	}

	// A record naming the source but omitting credibility scores off the
	// learned estimate instead of zero.
	rec := models.Record{
		ID:       "learned",
		Source:   models.SourceExternalSignal,
		External: &models.ExternalFeatures{KeywordWeight: 0.8, FrequencyFactor: 2, SourceID: "feed-a"},
	}
	w = doJSON(t, server, http.MethodPost, "/api/v1/score", rec)
	if w.Code != http.StatusOK {
		t.Fatalf("score: %d", w.Code)
	}
	var scored models.ScoreResult
	if err := json.Unmarshal(w.Body.Bytes(), &scored); err != nil {
		t.Fatalf("decode score: %v", err)
	}
	if scored.Score == 0 {
		t.Fatal("score ignored learned credibility")
	}

	w = doJSON(t, server, http.MethodPost, "/api/v1/sources/verdict", map[string]any{"true_positive": true})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing source_id: %d, want 400", w.Code)
	}
}
