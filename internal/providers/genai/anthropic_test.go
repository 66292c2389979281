package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestAnthropicCompleteSendsHeadersAndParsesText(t *testing.T) {
	var captured *http.Request
	var payload anthropicRequest

	backend, err := NewAnthropicBackend(AnthropicOptions{
		APIKey: "key-123",
		Model:  "claude-sonnet-4-5",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			captured = r
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"content":[{"type":"thinking","text":"..."},{"type":"text","text":"hello"}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewAnthropicBackend returned error: %v", err)
	}

	text, err := backend.Complete(context.Background(), CompletionRequest{Prompt: "hi", Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "hello" {
		t.Fatalf("unexpected text: %q", text)
	}
	if got := captured.Header.Get("x-api-key"); got != "key-123" {
		t.Fatalf("x-api-key = %q", got)
	}
	if got := captured.Header.Get("anthropic-version"); got != "2023-06-01" {
		t.Fatalf("anthropic-version = %q", got)
	}
	if payload.Temperature == nil || *payload.Temperature != 0.7 {
		t.Fatalf("temperature not forwarded: %+v", payload.Temperature)
	}
	if payload.Thinking != nil {
		t.Fatal("thinking should be absent without extended reasoning")
	}
}

func TestAnthropicExtendedReasoningDropsTemperature(t *testing.T) {
	var payload anthropicRequest

	backend, err := NewAnthropicBackend(AnthropicOptions{
		APIKey: "key-123",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"content":[{"type":"text","text":"ok"}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewAnthropicBackend returned error: %v", err)
	}

	if _, err := backend.Complete(context.Background(), CompletionRequest{Prompt: "hi", Temperature: 0.7, ExtendedReasoning: true}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if payload.Thinking == nil || payload.Thinking.Type != "enabled" || payload.Thinking.BudgetTokens != defaultThinkingBudget {
		t.Fatalf("thinking config mismatch: %+v", payload.Thinking)
	}
	if payload.Temperature != nil {
		t.Fatal("temperature must be omitted when thinking is enabled")
	}
}

func TestAnthropicCompleteSurfacesAPIError(t *testing.T) {
	backend, err := NewAnthropicBackend(AnthropicOptions{
		APIKey: "key-123",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error","message":"slow down"}}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewAnthropicBackend returned error: %v", err)
	}

	_, err = backend.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "slow down") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestGeminiCompleteReturnsFirstNonEmptyPart(t *testing.T) {
	var captured *http.Request

	backend, err := NewGeminiBackend(GeminiOptions{
		APIKey: "g-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			captured = r
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":""},{"text":"result"}]}}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiBackend returned error: %v", err)
	}

	text, err := backend.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "result" {
		t.Fatalf("unexpected text: %q", text)
	}
	if got := captured.Header.Get("x-goog-api-key"); got != "g-key" {
		t.Fatalf("x-goog-api-key = %q", got)
	}
	if !strings.Contains(captured.URL.Path, "gemini-2.0-flash:generateContent") {
		t.Fatalf("unexpected path: %s", captured.URL.Path)
	}
}
