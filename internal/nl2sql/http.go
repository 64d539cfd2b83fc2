package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOracleTimeout = 2 * time.Minute

type jsonClient struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

func newJSONClient(baseURL string, timeout time.Duration, httpClient *http.Client) (jsonClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return jsonClient{}, fmt.Errorf("base URL is required")
	}
	if httpClient == nil {
		if timeout <= 0 {
			timeout = defaultOracleTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return jsonClient{baseURL: baseURL, headers: map[string]string{}, client: httpClient}, nil
}

func (c jsonClient) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response body: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s failed status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(rawRespBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rawRespBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
