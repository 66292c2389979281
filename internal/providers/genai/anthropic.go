package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicDefaultTimeout = 60 * time.Second
	anthropicAPIVersion     = "2023-06-01"
	anthropicProviderName   = "anthropic"

	defaultThinkingBudget = 2048
)

// AnthropicOptions configures the Anthropic messages backend.
type AnthropicOptions struct {
	APIKey         string
	Model          string
	BaseURL        string
	HTTPClient     *http.Client
	ThinkingBudget int
}

// AnthropicBackend talks to the Anthropic messages API.
type AnthropicBackend struct {
	apiKey         string
	model          string
	baseURL        string
	client         *http.Client
	thinkingBudget int
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// NewAnthropicBackend constructs the Anthropic backend.
func NewAnthropicBackend(opts AnthropicOptions) (*AnthropicBackend, error) {
	if opts.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: anthropicDefaultTimeout}
	}
	budget := opts.ThinkingBudget
	if budget <= 0 {
		budget = defaultThinkingBudget
	}
	return &AnthropicBackend{
		apiKey:         opts.APIKey,
		model:          model,
		baseURL:        baseURL,
		client:         client,
		thinkingBudget: budget,
	}, nil
}

func (a *AnthropicBackend) Name() string {
	return anthropicProviderName
}

// Complete sends one messages request and concatenates the text content
// blocks, skipping thinking blocks.
func (a *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	payload := anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.ExtendedReasoning {
		// Temperature must stay at the provider default when thinking is on.
		payload.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: a.thinkingBudget}
	} else if req.Temperature > 0 {
		t := req.Temperature
		payload.Temperature = &t
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("invoke anthropic: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out anthropicResponse
	if resp.StatusCode >= http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Error != nil {
			return "", fmt.Errorf("anthropic status %d: %s", resp.StatusCode, out.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	sb := &strings.Builder{}
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("anthropic returned no text content")
	}
	return text, nil
}

var _ Backend = (*AnthropicBackend)(nil)
