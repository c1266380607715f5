// Package vertexembed implements providers.Embedder against the Vertex AI
// text-embedding REST endpoint, grounded on the donor's
// internal/gcpclient/embedding.go.
package vertexembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers/retry"
)

// TaskType selects the asymmetric embedding mode Vertex AI uses to get
// better retrieval quality for queries vs. the documents they're matched
// against.
type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

// Adapter implements providers.Embedder.
type Adapter struct {
	project    string
	location   string
	model      string
	httpClient *http.Client
	taskType   TaskType
}

// New creates an Adapter using application-default credentials, embedding
// with TaskRetrievalQuery by default (queries are the hot path for Gweta;
// the ingestion pipeline that embeds documents is out of scope per §1).
func New(ctx context.Context, project, location, modelName string) (*Adapter, error) {
	httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("vertexembed.New: default credentials: %w", err)
	}
	return &Adapter{
		project:    project,
		location:   location,
		model:      modelName,
		httpClient: httpClient,
		taskType:   TaskRetrievalQuery,
	}, nil
}

// Embed implements providers.Embedder.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return retry.Do(ctx, "vertexembed.Embed", func() ([][]float32, error) {
		return a.doEmbed(ctx, texts)
	})
}

type embedInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embedRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *Adapter) buildEndpointURL() string {
	if a.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			a.project, a.model,
		)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.project, a.location, a.model,
	)
}

func (a *Adapter) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	instances := make([]embedInstance, len(texts))
	for i, t := range texts {
		instances[i] = embedInstance{Content: t, TaskType: string(a.taskType)}
	}

	bodyBytes, err := json.Marshal(embedRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("vertexembed.doEmbed: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.buildEndpointURL(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("vertexembed.doEmbed: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vertexembed.doEmbed: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vertexembed.doEmbed: read body: %w", err)
	}
	if retry.IsRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("vertexembed.doEmbed: status %d: %w", resp.StatusCode, retry.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vertexembed.doEmbed: status %d: %s", resp.StatusCode, respBody)
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("vertexembed.doEmbed: decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("vertexembed.doEmbed: api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Predictions) != len(texts) {
		return nil, fmt.Errorf("vertexembed.doEmbed: %w: expected %d predictions, got %d",
			model.ErrEmbeddingUnavailable, len(texts), len(parsed.Predictions))
	}

	out := make([][]float32, len(parsed.Predictions))
	for i, p := range parsed.Predictions {
		out[i] = p.Embeddings.Values
	}
	return out, nil
}

// HealthCheck validates the embedding endpoint with a minimal call.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	vecs, err := a.Embed(ctx, []string{"health check"})
	if err != nil {
		return fmt.Errorf("vertexembed.HealthCheck: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return fmt.Errorf("vertexembed.HealthCheck: %w: empty vector", model.ErrEmbeddingUnavailable)
	}
	return nil
}
