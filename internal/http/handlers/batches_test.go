package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"producer/internal/adapter/repo"
	"producer/internal/domain"
	"producer/internal/http/handlers"
	"producer/internal/http/httpapi"
	"producer/internal/infra"
	"producer/internal/media"
	"producer/internal/pipeline"
	"producer/internal/providers/genai"
	"producer/internal/providers/video"
	"producer/internal/storage"
)

type stubBackend struct {
	responses []string
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Complete(ctx context.Context, req genai.CompletionRequest) (string, error) {
	if len(s.responses) == 0 {
		return "{}", nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

type stubTrends struct {
	records []domain.ContentRecord
}

func (s *stubTrends) Fetch(ctx context.Context, lookbackDays, minViews, limit int) ([]domain.ContentRecord, error) {
	return s.records, nil
}

type stubGenerator struct{}

func (stubGenerator) Submit(ctx context.Context, req video.SubmitRequest) (*video.Job, error) {
	return &video.Job{Name: "operations/1"}, nil
}

func (stubGenerator) Poll(ctx context.Context, job *video.Job) (*video.PollResult, error) {
	return &video.PollResult{Done: true, AssetURL: "https://assets.example.com/raw.mp4"}, nil
}

type stubComposer struct{}

func (stubComposer) Compose(ctx context.Context, req media.ComposeRequest) error { return nil }

func newTestServer(t *testing.T, responses []string, records []domain.ContentRecord) (http.Handler, *repo.BatchRepositoryMemory) {
	t.Helper()
	logger := infra.Logger(zerolog.Nop())
	gen, err := genai.NewClient(genai.Options{Backend: &stubBackend{responses: responses}, BackoffBase: time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	batchRepo := repo.NewBatchRepository()
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Repo:      batchRepo,
		Generator: stubGenerator{},
		Composer:  stubComposer{},
		Store:     store,
		BaseURL:   "http://localhost:8080/static",
		Settings:  pipeline.ProductionSettings{PollIntervalSeconds: 1, TimeoutSeconds: 30},
		Logger:    logger,
	})
	svc := pipeline.NewService(pipeline.ServiceOptions{
		Repo:      batchRepo,
		Headlines: pipeline.NewHeadlineGenerator(gen, &stubTrends{records: records}, batchRepo, logger),
		Scripts:   pipeline.NewScriptWriter(gen, batchRepo, logger),
		Visuals:   pipeline.NewVisualPlanner(gen, batchRepo, logger),
		Producer:  orch,
		Logger:    logger,
	})
	router := httpapi.NewRouter(httpapi.RouterOptions{
		App:            handlers.NewApp(svc, logger),
		Logger:         logger,
		AllowedOrigins: []string{"*"},
	})
	return router, batchRepo
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGetBatchNotFoundMapsTo404(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/v1/batches/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStartBatchNoTrendsMapsTo422(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/batches/", `{"count":2}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestApproveScriptsWrongStateMapsTo409(t *testing.T) {
	headlines := `{"generated_headlines":[{"id":"hl_1","headline":"One"},{"id":"hl_2","headline":"Two"}]}`
	records := []domain.ContentRecord{{ID: "c1", Headline: "viral", Views: 900000, PublishedAt: time.Now()}}
	h, _ := newTestServer(t, []string{headlines}, records)

	rec := doJSON(t, h, http.MethodPost, "/v1/batches/", `{"count":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("StartBatch status = %d: %s", rec.Code, rec.Body.String())
	}
	var batch domain.Batch
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/batches/"+batch.ID+"/scripts/approve", `{"approved_ids":["hl_1"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestStartProductionReturnsTicket(t *testing.T) {
	records := []domain.ContentRecord{{ID: "c1", Headline: "viral", Views: 900000, PublishedAt: time.Now()}}
	responses := []string{
		`{"generated_headlines":[{"id":"hl_1","headline":"One"}]}`,
		`[{"id":"hl_1","headline":"One","caption":"Cap","reasoning":"Because"}]`,
		`[{"id":"hl_1","video_prompt":"Macro shot","text_lines":["ONE"],"duration_seconds":8}]`,
	}
	h, batchRepo := newTestServer(t, responses, records)

	rec := doJSON(t, h, http.MethodPost, "/v1/batches/", `{"count":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("StartBatch status = %d: %s", rec.Code, rec.Body.String())
	}
	var batch domain.Batch
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/batches/"+batch.ID+"/headlines/approve", `{"approved_ids":["hl_1"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ApproveHeadlines status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPost, "/v1/batches/"+batch.ID+"/scripts/approve", `{"approved_ids":["hl_1"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ApproveScripts status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/batches/"+batch.ID+"/production", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("StartProduction status = %d: %s", rec.Code, rec.Body.String())
	}
	var ticket pipeline.ProductionTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if !ticket.Queued || ticket.ItemsCount != 1 {
		t.Fatalf("ticket = %+v", ticket)
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		got, err := batchRepo.Get(context.Background(), batch.ID)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if got.State == domain.StateCompleted {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("batch never completed")
}
