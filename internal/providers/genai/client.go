package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"producer/internal/domain"
	"producer/internal/infra"
)

const (
	defaultTransportAttempts  = 3
	defaultStructuralAttempts = 3
	defaultBackoffBase        = 2 * time.Second
	defaultBackoffCap         = 10 * time.Second

	systemPrompt  = "You are an expert content producer. You follow instructions precisely."
	jsonDirective = "Respond ONLY with valid JSON. Do not include markdown formatting such as ```json fences."
)

// Backend is the single capability a text generation provider must offer.
// Concrete backends (Anthropic, Gemini) are selected at construction time.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is the provider-agnostic request shape handed to a Backend.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// ExtendedReasoning reserves an internal deliberation budget on providers
	// that support it. Passed through untouched; the client never branches on it.
	ExtendedReasoning bool
}

// GenerateRequest describes one generation call made by a pipeline stage.
type GenerateRequest struct {
	Prompt            string
	Temperature       float64
	MaxTokens         int
	ExtendedReasoning bool
}

// Result carries the outcome of a structured generation. When the structural
// repair budget is exhausted, Malformed is set and Text holds the last raw
// response so callers can decide whether a degraded result aborts their stage.
type Result struct {
	Text       string
	JSON       json.RawMessage
	Malformed  bool
	ParseError string
}

// Options controls how the generation client is configured.
type Options struct {
	Backend            Backend
	Logger             *infra.Logger
	TransportAttempts  int
	StructuralAttempts int
	BackoffBase        time.Duration
	BackoffCap         time.Duration
}

// Client wraps a Backend with transport retries and structured-output
// self-correction. Transport attempts and structural repair attempts are
// bounded independently, so the worst case is attempts*attempts underlying
// calls.
type Client struct {
	backend            Backend
	logger             infra.Logger
	transportAttempts  int
	structuralAttempts int
	backoffBase        time.Duration
	backoffCap         time.Duration
}

// NewClient constructs a generation client around the configured backend.
func NewClient(opts Options) (*Client, error) {
	if opts.Backend == nil {
		return nil, errors.New("genai: backend is required")
	}
	c := &Client{
		backend:            opts.Backend,
		transportAttempts:  opts.TransportAttempts,
		structuralAttempts: opts.StructuralAttempts,
		backoffBase:        opts.BackoffBase,
		backoffCap:         opts.BackoffCap,
	}
	if c.transportAttempts <= 0 {
		c.transportAttempts = defaultTransportAttempts
	}
	if c.structuralAttempts <= 0 {
		c.structuralAttempts = defaultStructuralAttempts
	}
	if c.backoffBase <= 0 {
		c.backoffBase = defaultBackoffBase
	}
	if c.backoffCap <= 0 {
		c.backoffCap = defaultBackoffCap
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	} else {
		c.logger = infra.Logger(zerolog.New(io.Discard))
	}
	return c, nil
}

// GenerateText performs a plain text generation with transport retries only.
func (c *Client) GenerateText(ctx context.Context, req GenerateRequest) (string, error) {
	return c.completeWithRetry(ctx, CompletionRequest{
		System:            systemPrompt,
		Prompt:            req.Prompt,
		Temperature:       req.Temperature,
		MaxTokens:         req.MaxTokens,
		ExtendedReasoning: req.ExtendedReasoning,
	})
}

// GenerateJSON performs a structured generation. On parse failure it issues a
// follow-up request embedding the parse error, the original prompt and an
// instruction to return corrected JSON only, up to the structural attempt
// bound. An exhausted repair budget yields a Malformed sentinel result, not an
// error.
func (c *Client) GenerateJSON(ctx context.Context, req GenerateRequest) (*Result, error) {
	prompt := req.Prompt
	var lastRaw, lastParseErr string

	for attempt := 1; attempt <= c.structuralAttempts; attempt++ {
		raw, err := c.completeWithRetry(ctx, CompletionRequest{
			System:            systemPrompt + "\n" + jsonDirective,
			Prompt:            prompt,
			Temperature:       req.Temperature,
			MaxTokens:         req.MaxTokens,
			ExtendedReasoning: req.ExtendedReasoning,
		})
		if err != nil {
			return nil, err
		}

		payload, parseErr := parseStructured(raw)
		if parseErr == nil {
			return &Result{Text: raw, JSON: payload}, nil
		}

		lastRaw = raw
		lastParseErr = parseErr.Error()
		c.logger.Warn().
			Str("backend", c.backend.Name()).
			Int("attempt", attempt).
			Str("parse_error", lastParseErr).
			Msg("genai: structured output invalid, requesting correction")

		prompt = correctionPrompt(lastParseErr, req.Prompt)
	}

	c.logger.Error().
		Str("backend", c.backend.Name()).
		Int("attempts", c.structuralAttempts).
		Msg("genai: structured repair exhausted")

	return &Result{Text: lastRaw, Malformed: true, ParseError: lastParseErr}, nil
}

func (c *Client) completeWithRetry(ctx context.Context, req CompletionRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.transportAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, attempt-1); err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrTransport, err)
			}
		}

		text, err := c.backend.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		c.logger.Warn().
			Err(err).
			Str("backend", c.backend.Name()).
			Int("attempt", attempt).
			Msg("genai: completion failed")
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrTransport, c.backend.Name(), c.transportAttempts, lastErr)
}

// wait sleeps for the exponential backoff delay of the given retry, honoring
// context cancellation.
func (c *Client) wait(ctx context.Context, retry int) error {
	delay := c.backoffBase << (retry - 1)
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func correctionPrompt(parseErr, original string) string {
	sb := &strings.Builder{}
	sb.WriteString("Previous response was invalid JSON: ")
	sb.WriteString(parseErr)
	sb.WriteString("\n\nOriginal prompt:\n")
	sb.WriteString(original)
	sb.WriteString("\n\nReturn the corrected response as valid JSON only, with no other text.")
	return sb.String()
}

func parseStructured(raw string) (json.RawMessage, error) {
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return nil, errors.New("empty payload")
	}
	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, err
	}
	return json.RawMessage(cleaned), nil
}

// extractJSONFragment strips markdown fences and any prose surrounding the
// outermost JSON value.
func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
