package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOpenAIProvider_Defaults(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"})

	if p.baseURL != "https://api.openai.com" {
		t.Errorf("baseURL = %q", p.baseURL)
	}
	if p.model != "gpt-4o-mini" {
		t.Errorf("model = %q", p.model)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestOpenAIProvider_BuildRequest(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{Model: "default-model"})

	req := p.buildRequest(UserPrompt("system text", "user text", 300, 0.7))
	if req.Model != "default-model" {
		t.Errorf("Model = %q, want default-model", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != "system text" {
		t.Errorf("first message = %+v", req.Messages[0])
	}
	if req.Messages[1].Role != "user" {
		t.Errorf("second message role = %q", req.Messages[1].Role)
	}

	override := p.buildRequest(&Request{Model: "other"})
	if override.Model != "other" {
		t.Errorf("request model should override default, got %q", override.Model)
	}
}

func TestOpenAIProvider_Generate_HTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %v, want POST", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Path = %v, want /v1/chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %v, want Bearer test-key", r.Header.Get("Authorization"))
		}

		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.MaxTokens != 200 {
			t.Errorf("max_tokens = %d, want 200", body.MaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-test",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "Try GROUP BY."},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})

	got, err := p.Generate(context.Background(), UserPrompt("sys", "hint please", 200, 0.7))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != "Try GROUP BY." {
		t.Errorf("Content = %q", got.Content)
	}
	if got.Usage.Total() != 15 {
		t.Errorf("Usage.Total() = %d, want 15", got.Usage.Total())
	}
}

func TestOpenAIProvider_Generate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "bad-key", BaseURL: server.URL})

	_, err := p.Generate(context.Background(), UserPrompt("", "Hello", 10, 0))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestOpenAIProvider_Generate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL})
	if _, err := p.Generate(context.Background(), UserPrompt("", "Hello", 10, 0)); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIProvider_Generate_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := p.Generate(ctx, UserPrompt("", "Hello", 10, 0)); err == nil {
		t.Error("Generate() should fail when the context is cancelled")
	}
}
