// Package vertexllm implements providers.LLM against Vertex AI Gemini,
// reusing the donor's SDK+REST dual path (genai.go): the Go SDK for
// regional endpoints, raw REST with SSE framing for the global endpoint,
// which the SDK does not support.
package vertexllm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"

	"github.com/connexus-ai/gweta-core/internal/model"
	"github.com/connexus-ai/gweta-core/internal/providers/retry"
)

// Adapter implements providers.LLM.
type Adapter struct {
	client     *genai.Client
	httpClient *http.Client
	project    string
	location   string
	model      string
	useREST    bool
}

// New creates an Adapter. location "global" routes through REST since the
// genai SDK does not support the global endpoint.
func New(ctx context.Context, project, location, modelName string) (*Adapter, error) {
	if location == "global" {
		httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("vertexllm.New: default credentials: %w", err)
		}
		return &Adapter{httpClient: httpClient, project: project, location: location, model: modelName, useREST: true}, nil
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("vertexllm.New: %w", err)
	}
	return &Adapter{client: client, project: project, location: location, model: modelName}, nil
}

// Complete implements providers.LLM.
func (a *Adapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return retry.Do(ctx, "vertexllm.Complete", func() (string, error) {
		if a.useREST {
			return a.completeREST(ctx, systemPrompt, userPrompt)
		}
		return a.completeSDK(ctx, systemPrompt, userPrompt)
	})
}

func (a *Adapter) completeSDK(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := a.client.GenerativeModel(a.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("vertexllm.completeSDK: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("vertexllm.completeSDK: %w: empty response", model.ErrLLMUnavailable)
	}

	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			parts = append(parts, string(t))
		}
	}
	return strings.Join(parts, ""), nil
}

type restRequest struct {
	Contents          []restContent `json:"contents"`
	SystemInstruction *restContent  `json:"systemInstruction,omitempty"`
}

type restContent struct {
	Role  string     `json:"role"`
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text string `json:"text"`
}

type restResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *Adapter) endpoint(streaming bool) string {
	verb := "generateContent"
	suffix := ""
	if streaming {
		verb = "streamGenerateContent"
		suffix = "?alt=sse"
	}
	return fmt.Sprintf(
		"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:%s%s",
		a.project, a.model, verb, suffix,
	)
}

func buildBody(systemPrompt, userPrompt string) ([]byte, error) {
	body := restRequest{Contents: []restContent{{Role: "user", Parts: []restPart{{Text: userPrompt}}}}}
	if systemPrompt != "" {
		body.SystemInstruction = &restContent{Role: "user", Parts: []restPart{{Text: systemPrompt}}}
	}
	return json.Marshal(body)
}

func (a *Adapter) completeREST(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	bodyBytes, err := buildBody(systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("vertexllm.completeREST: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.endpoint(false), bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("vertexllm.completeREST: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vertexllm.completeREST: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("vertexllm.completeREST: read body: %w", err)
	}
	if retry.IsRetryableStatus(resp.StatusCode) {
		return "", fmt.Errorf("vertexllm.completeREST: status %d: %w", resp.StatusCode, retry.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vertexllm.completeREST: status %d: %s", resp.StatusCode, respBody)
	}

	var genResp restResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("vertexllm.completeREST: decode: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("vertexllm.completeREST: api error %d: %s", genResp.Error.Code, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("vertexllm.completeREST: %w: empty response", model.ErrLLMUnavailable)
	}

	var parts []string
	for _, p := range genResp.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, ""), nil
}

// Stream implements providers.LLM.
func (a *Adapter) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error) {
	textCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(textCh)
		defer close(errCh)

		var err error
		if a.useREST {
			err = a.streamREST(ctx, systemPrompt, userPrompt, textCh)
		} else {
			err = a.streamSDK(ctx, systemPrompt, userPrompt, textCh)
		}
		if err != nil {
			errCh <- err
		}
	}()

	return textCh, errCh
}

func (a *Adapter) streamSDK(ctx context.Context, systemPrompt, userPrompt string, textCh chan<- string) error {
	m := a.client.GenerativeModel(a.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	iter := m.GenerateContentStream(ctx, genai.Text(userPrompt))
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("vertexllm.streamSDK: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					textCh <- string(t)
				}
			}
		}
	}
}

func (a *Adapter) streamREST(ctx context.Context, systemPrompt, userPrompt string, textCh chan<- string) error {
	bodyBytes, err := buildBody(systemPrompt, userPrompt)
	if err != nil {
		return fmt.Errorf("vertexllm.streamREST: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.endpoint(true), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("vertexllm.streamREST: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vertexllm.streamREST: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vertexllm.streamREST: status %d: %s", resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var chunk restResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					textCh <- part.Text
				}
			}
		}
	}
	return scanner.Err()
}

// HealthCheck validates the Vertex AI connection.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	resp, err := a.Complete(ctx, "", "Reply with only: OK")
	if err != nil {
		return fmt.Errorf("vertexllm.HealthCheck: %w", err)
	}
	if resp == "" {
		return fmt.Errorf("vertexllm.HealthCheck: %w: empty response", model.ErrLLMUnavailable)
	}
	return nil
}

// Close releases the underlying SDK client, if any.
func (a *Adapter) Close() {
	if a.client != nil {
		a.client.Close()
	}
}
