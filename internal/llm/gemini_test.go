package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiProvider_BuildRequest(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{})

	req := p.buildRequest(&Request{
		System: "You are a helpful coding tutor.",
		Messages: []Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "reply"},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})

	if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "You are a helpful coding tutor." {
		t.Errorf("SystemInstruction = %+v", req.SystemInstruction)
	}
	if len(req.Contents) != 2 {
		t.Fatalf("len(Contents) = %d, want 2", len(req.Contents))
	}
	if req.Contents[1].Role != "model" {
		t.Errorf("assistant role should map to model, got %q", req.Contents[1].Role)
	}
	if req.GenerationConfig.MaxOutputTokens != 300 {
		t.Errorf("MaxOutputTokens = %d", req.GenerationConfig.MaxOutputTokens)
	}

	if p.buildRequest(&Request{}).SystemInstruction != nil {
		t.Error("empty system prompt should be omitted")
	}
}

func TestGeminiProvider_Generate_HTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("Path = %v", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "gkey" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}

		var body geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Contents) != 1 || body.Contents[0].Parts[0].Text != "generate" {
			t.Errorf("contents = %+v", body.Contents)
		}

		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "[{\"id\":"}, {"text": "\"1\"}]"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 100, "candidatesTokenCount": 50, "totalTokenCount": 180}
		}`))
	}))
	defer server.Close()

	p := NewGeminiProvider(GeminiConfig{APIKey: "gkey", BaseURL: server.URL, Model: "gemini-test"})

	got, err := p.Generate(context.Background(), UserPrompt("", "generate", 3000, 0.7))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != `[{"id":"1"}]` {
		t.Errorf("Content = %q, parts should be joined", got.Content)
	}
	if got.FinishReason != "STOP" {
		t.Errorf("FinishReason = %q", got.FinishReason)
	}
	if got.Usage.Total() != 180 {
		t.Errorf("Usage.Total() = %d, want reported total 180", got.Usage.Total())
	}
}

func TestGeminiProvider_Generate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "api error",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"quota"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
					t.Errorf("error = %v, want 429 APIError", err)
				}
			},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   `{"candidates": []}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Errorf("error = %v, want ErrEmptyResponse", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewGeminiProvider(GeminiConfig{BaseURL: server.URL})
			_, err := p.Generate(context.Background(), UserPrompt("", "x", 10, 0))
			tt.check(t, err)
		})
	}
}
