package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"producer/internal/domain"
)

type fakeBackend struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func newTestClient(t *testing.T, backend Backend) *Client {
	t.Helper()
	c, err := NewClient(Options{
		Backend:     backend,
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func TestGenerateJSONSelfCorrectionRecovers(t *testing.T) {
	backend := &fakeBackend{responses: []string{
		"this is not json",
		"{broken",
		`{"ok": true}`,
	}}
	c := newTestClient(t, backend)

	res, err := c.GenerateJSON(context.Background(), GenerateRequest{Prompt: "generate"})
	if err != nil {
		t.Fatalf("GenerateJSON returned error: %v", err)
	}
	if res.Malformed {
		t.Fatalf("expected valid result, got malformed: %s", res.ParseError)
	}
	if backend.calls != 3 {
		t.Fatalf("expected exactly 3 backend calls, got %d", backend.calls)
	}
	if string(res.JSON) != `{"ok": true}` {
		t.Fatalf("unexpected payload: %s", res.JSON)
	}
}

func TestGenerateJSONRepairExhaustedReturnsSentinel(t *testing.T) {
	backend := &fakeBackend{responses: []string{"nope", "still nope", "nope again"}}
	c := newTestClient(t, backend)

	res, err := c.GenerateJSON(context.Background(), GenerateRequest{Prompt: "generate"})
	if err != nil {
		t.Fatalf("expected sentinel result, got error: %v", err)
	}
	if !res.Malformed {
		t.Fatalf("expected Malformed sentinel, got %+v", res)
	}
	if res.Text != "nope again" {
		t.Fatalf("sentinel should carry last raw text, got %q", res.Text)
	}
	if res.ParseError == "" {
		t.Fatal("sentinel should carry the parse error")
	}
	if backend.calls != 3 {
		t.Fatalf("expected exactly 3 backend calls, got %d", backend.calls)
	}
}

func TestGenerateJSONStripsCodeFence(t *testing.T) {
	backend := &fakeBackend{responses: []string{"```json\n{\"items\": [1, 2]}\n```"}}
	c := newTestClient(t, backend)

	res, err := c.GenerateJSON(context.Background(), GenerateRequest{Prompt: "generate"})
	if err != nil {
		t.Fatalf("GenerateJSON returned error: %v", err)
	}
	if res.Malformed {
		t.Fatalf("fenced payload should parse, got malformed: %s", res.ParseError)
	}
	if string(res.JSON) != `{"items": [1, 2]}` {
		t.Fatalf("unexpected payload: %s", res.JSON)
	}
}

func TestGenerateTextRetriesTransportFailures(t *testing.T) {
	backend := &fakeBackend{
		responses: []string{"", "", "recovered"},
		errs:      []error{errors.New("boom"), errors.New("boom again"), nil},
	}
	c := newTestClient(t, backend)

	text, err := c.GenerateText(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("unexpected text: %q", text)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", backend.calls)
	}
}

func TestGenerateTextSurfacesTransportError(t *testing.T) {
	backend := &fakeBackend{
		responses: []string{"", "", ""},
		errs:      []error{errors.New("down"), errors.New("down"), errors.New("down")},
	}
	c := newTestClient(t, backend)

	_, err := c.GenerateText(context.Background(), GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 attempts before surfacing, got %d", backend.calls)
	}
}

func TestCorrectionPromptEmbedsErrorAndOriginal(t *testing.T) {
	backend := &fakeBackend{responses: []string{"garbage", `{"fixed": true}`}}
	c := newTestClient(t, backend)

	capture := &promptCapturingBackend{inner: backend}
	c.backend = capture

	if _, err := c.GenerateJSON(context.Background(), GenerateRequest{Prompt: "ORIGINAL PROMPT"}); err != nil {
		t.Fatalf("GenerateJSON returned error: %v", err)
	}
	if len(capture.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(capture.prompts))
	}
	followUp := capture.prompts[1]
	if !strings.Contains(followUp, "ORIGINAL PROMPT") || !strings.Contains(followUp, "invalid JSON") {
		t.Fatalf("follow-up prompt missing error or original prompt: %q", followUp)
	}
}

type promptCapturingBackend struct {
	inner   Backend
	prompts []string
}

func (p *promptCapturingBackend) Name() string { return p.inner.Name() }

func (p *promptCapturingBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	p.prompts = append(p.prompts, req.Prompt)
	return p.inner.Complete(ctx, req)
}
