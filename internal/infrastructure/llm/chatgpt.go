package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ContentOrchestrator/internal/config"
	"ContentOrchestrator/internal/ports"
)

// ProviderName identifies this backend in results and metrics.
const ProviderName = "openai"

// ChatGPTClient implements ports.ContentProvider and ports.ImageProvider backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	baseURL    string
	model      string
	imageModel string
	apiKey     string
	limiter    *rate.Limiter
	httpClient *http.Client
}

var (
	_ ports.ContentProvider = (*ChatGPTClient)(nil)
	_ ports.ImageProvider   = (*ChatGPTClient)(nil)
)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.OpenAIConfig) *ChatGPTClient {
	return &ChatGPTClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		apiKey:     cfg.APIKey,
		limiter:    newLimiter(cfg.RequestsPerMin),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *ChatGPTClient) Name() string { return ProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion and returns the first choice's text.
func (c *ChatGPTClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	var messages []chatMessage
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatgpt returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage requests a single image and returns its URL.
func (c *ChatGPTClient) GenerateImage(ctx context.Context, prompt, size, quality string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	payload := map[string]any{
		"model":   c.imageModel,
		"prompt":  prompt,
		"size":    size,
		"quality": quality,
		"n":       1,
	}

	var resp imageResponse
	if err := c.post(ctx, "/images/generations", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("image api returned no data")
	}
	return resp.Data[0].URL, nil
}

func (c *ChatGPTClient) ready() error {
	if c == nil {
		return fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.baseURL == "" || c.model == "" {
		return fmt.Errorf("chatgpt client misconfigured")
	}
	return nil
}

func (c *ChatGPTClient) post(ctx context.Context, path string, payload any, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// newLimiter converts a per-minute budget into a token bucket; non-positive means unlimited.
func newLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), 1)
}
