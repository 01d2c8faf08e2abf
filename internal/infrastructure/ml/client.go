package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ContentOrchestrator/internal/config"
	"ContentOrchestrator/internal/ports"
)

// Client talks to a self-hosted inference service exposing POST /complete.
type Client struct {
	name     string
	endpoint string
	apiKey   string
	limiter  *rate.Limiter
	http     *http.Client
}

var _ ports.ContentProvider = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.InferenceConfig) *Client {
	name := cfg.Name
	if name == "" {
		name = "inference"
	}
	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(cfg.RequestsPerMin / 60)
	}
	return &Client{
		name:     name,
		endpoint: strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		limiter:  rate.NewLimiter(limit, 1),
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Name() string { return c.name }

// Complete sends the prompt pair and returns the generated text.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("inference endpoint is not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	payload := map[string]any{
		"system":      req.System,
		"prompt":      req.User,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := c.post(ctx, "/complete", payload, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
