package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// ClassifierClient talks to the independent tier classifier over HTTP. It
// implements SecondarySignal; an unreachable or abstaining classifier
// never blocks a run.
type ClassifierClient struct {
	baseURL    string
	tierPath   string
	httpClient *http.Client
}

func NewClassifierClient(baseURL, tierPath string, timeout time.Duration) *ClassifierClient {
	return &ClassifierClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tierPath: tierPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ClassifyTier posts the record and returns the classifier's tier label.
// A 204 response or an empty tier means the classifier abstained.
func (c *ClassifierClient) ClassifyTier(ctx context.Context, rec models.Record) (*models.Tier, error) {
	if c == nil || c.baseURL == "" {
		return nil, nil
	}

	payload := map[string]any{
		"record_id":   rec.ID,
		"source_type": rec.Source,
		"content":     rec.Content,
		"risk_score":  rec.RiskScore,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal classify payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tierURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned %s", resp.Status)
	}

	var response struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if response.Tier == "" {
		return nil, nil
	}
	tier, ok := models.ParseTier(response.Tier)
	if !ok {
		return nil, fmt.Errorf("classifier returned unknown tier %q", response.Tier)
	}
	return &tier, nil
}

func (c *ClassifierClient) tierURL() string {
	cleaned := "/" + strings.TrimLeft(c.tierPath, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
