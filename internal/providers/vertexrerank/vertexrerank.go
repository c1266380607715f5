// Package vertexrerank implements providers.CrossEncoder against the Vertex
// AI Ranking API, grounded on vertexllm.Adapter's REST call shape (endpoint
// construction, retry.IsRetryableStatus classification, JSON request/response
// structs) — adapted from text generation to the ranking API's
// records-in/scores-out contract.
package vertexrerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"

	"github.com/connexus-ai/gweta-core/internal/providers/retry"
)

// Adapter implements providers.CrossEncoder via the Vertex AI Ranking API's
// rank endpoint, reusing vertexllm.Adapter's application-default-credentials
// REST client pattern.
type Adapter struct {
	httpClient *http.Client
	project    string
	location   string
}

// New creates an Adapter using application-default credentials, the same way
// vertexllm.New does for its global-endpoint REST path.
func New(ctx context.Context, project, location string) (*Adapter, error) {
	httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("vertexrerank.New: default credentials: %w", err)
	}
	return &Adapter{httpClient: httpClient, project: project, location: location}, nil
}

type rankRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type rankRequest struct {
	Model   string       `json:"model"`
	Query   string       `json:"query"`
	Records []rankRecord `json:"records"`
}

type rankResponse struct {
	Records []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"records"`
}

func (a *Adapter) endpoint() string {
	return fmt.Sprintf(
		"https://discoveryengine.googleapis.com/v1/projects/%s/locations/%s/rankingConfigs/default_ranking_config:rank",
		a.project, a.location,
	)
}

// Score implements providers.CrossEncoder: scores every (query, texts[i])
// pair and returns scores in the same order as texts, regardless of the
// order the ranking API returns them in.
func (a *Adapter) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return retry.Do(ctx, "vertexrerank.Score", func() ([]float64, error) {
		return a.scoreOnce(ctx, query, texts)
	})
}

func (a *Adapter) scoreOnce(ctx context.Context, query string, texts []string) ([]float64, error) {
	records := make([]rankRecord, len(texts))
	for i, t := range texts {
		records[i] = rankRecord{ID: fmt.Sprintf("%d", i), Content: t}
	}

	body, err := json.Marshal(rankRequest{Model: "semantic-ranker-default@latest", Query: query, Records: records})
	if err != nil {
		return nil, fmt.Errorf("vertexrerank.scoreOnce: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vertexrerank.scoreOnce: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vertexrerank.scoreOnce: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vertexrerank.scoreOnce: read body: %w", err)
	}
	if retry.IsRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("vertexrerank.scoreOnce: status %d: %w", resp.StatusCode, retry.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vertexrerank.scoreOnce: status %d: %s", resp.StatusCode, respBody)
	}

	var parsed rankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("vertexrerank.scoreOnce: decode: %w", err)
	}

	byID := make(map[string]float64, len(parsed.Records))
	for _, r := range parsed.Records {
		byID[r.ID] = r.Score
	}
	scores := make([]float64, len(texts))
	for i := range texts {
		scores[i] = byID[fmt.Sprintf("%d", i)]
	}
	return scores, nil
}

// HealthCheck validates the ranking endpoint with a trivial request.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if _, err := a.Score(ctx, "health check", []string{"ok"}); err != nil {
		return fmt.Errorf("vertexrerank.HealthCheck: %w", err)
	}
	return nil
}
