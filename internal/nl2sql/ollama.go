package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OllamaClient talks to the non-streaming /api/generate endpoint.
type OllamaClient struct {
	http  jsonClient
	model string
}

func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	client, err := newJSONClient(cfg.BaseURL, cfg.Timeout, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "llama3"
	}
	return &OllamaClient{http: client, model: model}, nil
}

func (c *OllamaClient) Model() string { return c.model }

func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	if options := ollamaOptions(opts); len(options) > 0 {
		payload["options"] = options
	}

	var parsed struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := c.http.do(ctx, http.MethodPost, "/api/generate", payload, &parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return parsed.Response, nil
}

func (c *OllamaClient) Ping(ctx context.Context) error {
	return c.http.do(ctx, http.MethodGet, "/api/tags", nil, nil)
}

func ollamaOptions(opts Options) map[string]any {
	options := map[string]any{}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		options["top_p"] = *opts.TopP
	}
	if opts.TopK != nil {
		options["top_k"] = *opts.TopK
	}
	if opts.MaxTokens != nil {
		options["num_predict"] = *opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}
	return options
}
