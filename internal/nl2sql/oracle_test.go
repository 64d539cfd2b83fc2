package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOllamaGenerateSendsOptions(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"SELECT 1","done":true}`))
	}))
	defer server.Close()

	client, err := NewOllamaClient(OllamaConfig{BaseURL: server.URL + "/", Model: "mistral"})
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}
	temperature := 0.0
	maxTokens := 256
	out, err := client.Generate(context.Background(), "prompt text", Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Stop:        []string{"```"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "SELECT 1" {
		t.Fatalf("Generate() = %q", out)
	}

	want := map[string]any{
		"model":  "mistral",
		"prompt": "prompt text",
		"stream": false,
		"options": map[string]any{
			"temperature": 0.0,
			"num_predict": 256.0,
			"stop":        []any{"```"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request payload mismatch (-want +got):\n%s", diff)
	}
}

func TestOllamaGenerateOmitsUnsetOptions(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer server.Close()

	client, err := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}
	if _, err := client.Generate(context.Background(), "p", Options{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := got["options"]; ok {
		t.Fatalf("options should be omitted: %#v", got)
	}
	if got["model"] != "llama3" {
		t.Fatalf("default model = %v", got["model"])
	}
}

func TestOllamaGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model not loaded", wantErr: "status=500"},
		{name: "empty response", status: http.StatusOK, body: `{"response":"  ","done":true}`, wantErr: "empty response"},
		{name: "bad json", status: http.StatusOK, body: `{`, wantErr: "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
			if err != nil {
				t.Fatalf("NewOllamaClient() error = %v", err)
			}
			_, err = client.Generate(context.Background(), "p", Options{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Generate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	client, err := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllamaClient() error = %v", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestNewOllamaClientRequiresBaseURL(t *testing.T) {
	if _, err := NewOllamaClient(OllamaConfig{BaseURL: " "}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Fatalf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SELECT 2"}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "secret", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	topP := 0.5
	out, err := client.Generate(context.Background(), "question prompt", Options{TopP: &topP})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "SELECT 2" {
		t.Fatalf("Generate() = %q", out)
	}

	want := map[string]any{
		"model": "gpt-test",
		"messages": []any{
			map[string]any{"role": "user", "content": "question prompt"},
		},
		"top_p": 0.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request payload mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenAIGenerateRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Generate(context.Background(), "p", Options{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAIClientRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://example.com"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestGenerationErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := error(&GenerationError{Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("GenerationError should unwrap to its cause")
	}
	if err.Error() != "generate sql: boom" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
