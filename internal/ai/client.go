package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrModelNotConfigured is returned when a model name has no settings entry.
var ErrModelNotConfigured = errors.New("model not configured")

// UpstreamError reports a failed LLM call: a transport failure or a non-200
// answer. Callers must leave the article untouched.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai upstream: %v", e.Err)
	}
	return fmt.Sprintf("ai upstream: status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Message is one chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is an OpenAI-compatible chat-completions body. Model is
// filled from the selected Model.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// maxErrorBody bounds how much of a failed response is kept in UpstreamError.
const maxErrorBody = 512

// Client posts chat-completions requests to the model's endpoint.
type Client struct {
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient creates a client whose calls time out after timeout.
func NewClient(timeout time.Duration, logger logrus.FieldLogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.WithField("component", "ai_client"),
	}
}

// Complete sends req to model and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, model Model, req CompletionRequest) (string, error) {
	req.Model = model.ID
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, model.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+model.APIKey)

	log := c.log.WithFields(logrus.Fields{"model": model.Name, "url": model.URL})
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.WithError(err).Warn("LLM request failed")
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.WithField("status", resp.StatusCode).Warn("LLM returned an error status")
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(snippet)}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", &UpstreamError{Status: resp.StatusCode, Err: errors.New("response has no choices")}
	}

	log.WithField("duration", time.Since(start).String()).Debug("LLM request completed")
	return out.Choices[0].Message.Content, nil
}
