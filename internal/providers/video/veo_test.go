package video

import (
	"context"
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

func newVeo(t *testing.T, rt roundTripFunc) *VeoGenerator {
	t.Helper()
	g, err := NewVeoGenerator(VeoOptions{
		APIKey:     "v-key",
		HTTPClient: &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("NewVeoGenerator returned error: %v", err)
	}
	return g
}

func TestSubmitReturnsOperationHandle(t *testing.T) {
	var captured *http.Request
	g := newVeo(t, func(r *http.Request) (*http.Response, error) {
		captured = r
		return jsonResponse(http.StatusOK, `{"name":"operations/abc123"}`), nil
	})

	job, err := g.Submit(context.Background(), SubmitRequest{Prompt: "macro shot", DurationSeconds: 8})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if job.Name != "operations/abc123" {
		t.Fatalf("job name = %q", job.Name)
	}
	if got := captured.Header.Get("x-goog-api-key"); got != "v-key" {
		t.Fatalf("x-goog-api-key = %q", got)
	}
	if !strings.Contains(captured.URL.Path, "veo-2.0-generate-001:predictLongRunning") {
		t.Fatalf("unexpected path: %s", captured.URL.Path)
	}
}

func TestPollNotDone(t *testing.T) {
	g := newVeo(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"name":"operations/abc123","done":false}`), nil
	})

	res, err := g.Poll(context.Background(), &Job{Name: "operations/abc123"})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if res.Done {
		t.Fatal("job should not be done")
	}
}

func TestPollDoneExtractsVideoURI(t *testing.T) {
	body := `{"name":"operations/abc123","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://example.com/v.mp4"}}]}}}`
	g := newVeo(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, body), nil
	})

	res, err := g.Poll(context.Background(), &Job{Name: "operations/abc123"})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if !res.Done || res.AssetURL != "https://example.com/v.mp4" {
		t.Fatalf("result = %+v", res)
	}
}

func TestPollDoneHandlesGeneratedVideosShape(t *testing.T) {
	body := `{"name":"operations/abc123","done":true,"response":{"generateVideoResponse":{"generatedVideos":[{"uri":"https://example.com/alt.mp4"}]}}}`
	g := newVeo(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, body), nil
	})

	res, err := g.Poll(context.Background(), &Job{Name: "operations/abc123"})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if res.AssetURL != "https://example.com/alt.mp4" {
		t.Fatalf("asset url = %q", res.AssetURL)
	}
}

func TestPollSurfacesOperationError(t *testing.T) {
	body := `{"name":"operations/abc123","done":true,"error":{"code":8,"message":"quota exceeded"}}`
	g := newVeo(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, body), nil
	})

	_, err := g.Poll(context.Background(), &Job{Name: "operations/abc123"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected operation error, got %v", err)
	}
}
