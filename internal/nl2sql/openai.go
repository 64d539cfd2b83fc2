package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient sends each prompt as a single user message to an
// OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	http  jsonClient
	model string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client, err := newJSONClient(cfg.BaseURL, cfg.Timeout, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	client.headers["Authorization"] = "Bearer " + strings.TrimSpace(cfg.APIKey)
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	return &OpenAIClient{http: client, model: model}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if opts.Temperature != nil {
		payload["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		payload["top_p"] = *opts.TopP
	}
	if opts.MaxTokens != nil {
		payload["max_tokens"] = *opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		payload["stop"] = opts.Stop
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.http.do(ctx, http.MethodPost, "/v1/chat/completions", payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return content, nil
}

func (c *OpenAIClient) Ping(ctx context.Context) error {
	return c.http.do(ctx, http.MethodGet, "/v1/models", nil, nil)
}
