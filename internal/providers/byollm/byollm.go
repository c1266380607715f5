// Package byollm implements providers.LLM against any OpenAI-compatible
// chat-completions API (OpenRouter by default), demonstrating that the LLM
// provider behind the graph runtime is swappable per §6 — grounded on the
// donor's internal/gcpclient/byollm.go.
package byollm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/connexus-ai/gweta-core/internal/model"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client implements providers.LLM against an OpenAI-compatible endpoint.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	httpClient     *http.Client
	streamClient   *http.Client
}

// New creates a Client. An empty baseURL defaults to OpenRouter.
func New(apiKey, baseURL, modelName string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		model:        modelName,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		streamClient: &http.Client{}, // no timeout: streaming responses can run long
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
}

func (c *Client) messages(systemPrompt, userPrompt string) []chatMessage {
	msgs := []chatMessage{}
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	return append(msgs, chatMessage{Role: "user", Content: userPrompt})
}

// Complete implements providers.LLM.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: c.messages(systemPrompt, userPrompt)})
	if err != nil {
		return "", fmt.Errorf("byollm.Complete: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("byollm.Complete: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return "", fmt.Errorf("byollm.Complete: %w: request timed out", model.ErrTimeout)
		}
		return "", fmt.Errorf("byollm.Complete: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("byollm.Complete: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("byollm.Complete: %w", statusError(resp.StatusCode, respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("byollm.Complete: decode: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("byollm.Complete: %w: empty choices", model.ErrLLMUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream implements providers.LLM.
func (c *Client) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error) {
	textCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(textCh)
		defer close(errCh)
		if err := c.stream(ctx, systemPrompt, userPrompt, textCh); err != nil {
			errCh <- err
		}
	}()

	return textCh, errCh
}

func (c *Client) stream(ctx context.Context, systemPrompt, userPrompt string, textCh chan<- string) error {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: c.messages(systemPrompt, userPrompt), Stream: true})
	if err != nil {
		return fmt.Errorf("byollm.stream: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("byollm.stream: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("byollm.stream: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("byollm.stream: %w", statusError(resp.StatusCode, respBody))
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
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // tolerate malformed SSE chunks, keep streaming
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			textCh <- chunk.Choices[0].Delta.Content
		}
	}
	return scanner.Err()
}

func statusError(code int, body []byte) error {
	switch {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", model.ErrAuthInvalid)
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: forbidden", model.ErrAuthInvalid)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w", model.ErrRateLimited)
	case code >= 500:
		return fmt.Errorf("%w: upstream status %d: %s", model.ErrLLMUnavailable, code, body)
	default:
		return fmt.Errorf("status %d: %s", code, body)
	}
}

func isTimeoutError(err error) bool {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return false
}
