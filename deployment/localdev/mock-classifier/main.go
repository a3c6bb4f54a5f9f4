package main

import (
	"encoding/json"
	"log"
	"net/http"
)

// Mock secondary classifier for local development. It buckets records by
// risk score with deliberately different cutoffs than the rules engine so
// the disagreement monitor has something to chew on.
func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/classify/tier", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			RecordID  string  `json:"record_id"`
			RiskScore float64 `json:"risk_score"`
			Content   string  `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		tier := "LOW"
		switch {
		case payload.RiskScore >= 80:
			tier = "CRITICAL"
		case payload.RiskScore >= 60:
			tier = "HIGH"
		case payload.RiskScore >= 50:
			tier = "ELEVATED"
		case payload.RiskScore >= 25:
			tier = "GUARDED"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"tier": tier})
	})

	addr := ":9180"
	log.Printf("mock-classifier listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
