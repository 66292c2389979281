package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"producer/internal/infra"
)

const veoDefaultTimeout = 30 * time.Second

// VeoOptions configures the Veo long-running generation client.
type VeoOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// VeoGenerator submits video generation jobs to the Veo API and polls the
// returned operations.
type VeoGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  infra.Logger
}

type veoSubmitRequest struct {
	Instances  []veoInstance  `json:"instances"`
	Parameters *veoParameters `json:"parameters,omitempty"`
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoParameters struct {
	DurationSeconds int `json:"durationSeconds,omitempty"`
	NumberOfVideos  int `json:"numberOfVideos,omitempty"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []veoSample `json:"generatedSamples"`
			GeneratedVideos  []veoSample `json:"generatedVideos"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

type veoSample struct {
	Video *struct {
		URI string `json:"uri"`
	} `json:"video"`
	URI string `json:"uri,omitempty"`
}

// NewVeoGenerator constructs the Veo client.
func NewVeoGenerator(opts VeoOptions) (*VeoGenerator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("veo api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "veo-2.0-generate-001"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: veoDefaultTimeout}
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &VeoGenerator{
		apiKey:  opts.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}, nil
}

// Submit starts a long-running generation and returns its operation handle.
func (v *VeoGenerator) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	payload := veoSubmitRequest{
		Instances: []veoInstance{{Prompt: req.Prompt}},
		Parameters: &veoParameters{
			DurationSeconds: req.DurationSeconds,
			NumberOfVideos:  1,
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", v.baseURL, url.PathEscape(v.model))
	var op veoOperation
	if err := v.invoke(ctx, http.MethodPost, endpoint, payload, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, errors.New("veo returned no operation name")
	}
	v.logger.Debug().Str("operation", op.Name).Msg("veo: job submitted")
	return &Job{Name: op.Name}, nil
}

// Poll refreshes the operation state once.
func (v *VeoGenerator) Poll(ctx context.Context, job *Job) (*PollResult, error) {
	if job == nil || job.Name == "" {
		return nil, errors.New("veo job handle is required")
	}
	endpoint := v.baseURL + "/" + strings.TrimLeft(job.Name, "/")
	var op veoOperation
	if err := v.invoke(ctx, http.MethodGet, endpoint, nil, &op); err != nil {
		return nil, err
	}
	if op.Error != nil {
		return nil, fmt.Errorf("veo operation failed: %s", op.Error.Message)
	}
	if !op.Done {
		return &PollResult{}, nil
	}
	uri := op.assetURI()
	if uri == "" {
		return nil, errors.New("veo operation done but no video uri found")
	}
	return &PollResult{Done: true, AssetURL: uri}, nil
}

func (o *veoOperation) assetURI() string {
	if o.Response == nil || o.Response.GenerateVideoResponse == nil {
		return ""
	}
	samples := o.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 {
		samples = o.Response.GenerateVideoResponse.GeneratedVideos
	}
	for _, s := range samples {
		if s.Video != nil && s.Video.URI != "" {
			return s.Video.URI
		}
		if s.URI != "" {
			return s.URI
		}
	}
	return ""
}

func (v *VeoGenerator) invoke(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-goog-api-key", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoke veo: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("veo status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode veo response: %w", err)
	}
	return nil
}

var _ Generator = (*VeoGenerator)(nil)
