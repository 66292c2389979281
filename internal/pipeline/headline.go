package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"producer/internal/domain"
	"producer/internal/infra"
	"producer/internal/providers/genai"
)

// StartRequest describes one batch start. Topic, when set, bypasses trend
// analysis and generates headlines for the topic directly.
type StartRequest struct {
	Count        int
	LookbackDays int
	MinViews     int
	Topic        string
}

// HeadlineGenerator runs the first pipeline stage: fetch trend signals,
// analyze them and produce headline candidates for human review.
type HeadlineGenerator struct {
	gen    *genai.Client
	trends domain.TrendSource
	repo   domain.BatchRepository
	logger infra.Logger
}

func NewHeadlineGenerator(gen *genai.Client, trends domain.TrendSource, repo domain.BatchRepository, logger infra.Logger) *HeadlineGenerator {
	return &HeadlineGenerator{
		gen:    gen,
		trends: trends,
		repo:   repo,
		logger: infra.ComponentLogger(logger, "headline_generator"),
	}
}

type generatedHeadline struct {
	ID            string `json:"id"`
	Headline      string `json:"headline"`
	SourcePattern string `json:"source_pattern"`
}

type headlinePayload struct {
	GeneratedHeadlines []generatedHeadline `json:"generated_headlines"`
}

// Start creates a new batch, generates headline candidates and leaves the
// batch in REVIEW_HEADLINES. A trend source that yields no qualifying records
// fails with ErrValidation before any provider call.
func (h *HeadlineGenerator) Start(ctx context.Context, req StartRequest) (*domain.Batch, error) {
	count := req.Count
	if count <= 0 {
		count = 10
	}

	var prompt string
	if req.Topic != "" {
		prompt = topicHeadlinePrompt(count, req.Topic)
	} else {
		records, err := h.trends.Fetch(ctx, req.LookbackDays, req.MinViews, count*2)
		if err != nil {
			return nil, fmt.Errorf("fetch trends: %w", err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: no qualifying trend records found", domain.ErrValidation)
		}
		prompt = trendAnalysisPrompt(count, records)
	}

	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:        newID("batch_", 12),
		State:     domain.StatePlanning,
		CreatedAt: now,
		UpdatedAt: now,
		Headlines: []domain.HeadlineItem{},
		Scripts:   []domain.ScriptItem{},
		Visuals:   []domain.VisualItem{},
	}
	if err := h.repo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	result, err := h.gen.GenerateJSON(ctx, genai.GenerateRequest{Prompt: prompt, Temperature: 0.9, ExtendedReasoning: true})
	if err != nil {
		batch.Fail(batch.ID, err.Error())
		_ = h.repo.Save(ctx, batch)
		return nil, err
	}
	if result.Malformed {
		batch.Fail(batch.ID, "headline generation returned malformed output")
		_ = h.repo.Save(ctx, batch)
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedResponse, result.ParseError)
	}

	headlines, dropped := parseHeadlines(result.JSON)
	for _, msg := range dropped {
		batch.RecordError(batch.ID, msg)
	}
	if len(headlines) == 0 {
		batch.Fail(batch.ID, "no valid headlines generated")
		_ = h.repo.Save(ctx, batch)
		return nil, fmt.Errorf("%w: no valid headlines generated", domain.ErrGenerationFailed)
	}

	batch.Headlines = headlines
	batch.TotalItems = len(headlines)
	batch.State = domain.StateReviewHeadlines
	if err := h.repo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	h.logger.Info().Str("batch_id", batch.ID).Int("headlines", len(headlines)).Msg("batch created")
	return batch, nil
}

// Refine regenerates one headline from free-text feedback and resets it to
// PENDING. The batch is saved by the caller's stage wrapper.
func (h *HeadlineGenerator) Refine(ctx context.Context, batch *domain.Batch, itemID, feedback string) (*domain.HeadlineItem, error) {
	idx := -1
	for i := range batch.Headlines {
		if batch.Headlines[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: headline %s in batch %s", domain.ErrNotFound, itemID, batch.ID)
	}
	item := &batch.Headlines[idx]

	result, err := h.gen.GenerateJSON(ctx, genai.GenerateRequest{Prompt: refinePrompt(item, feedback), Temperature: 0.9})
	if err != nil {
		return nil, err
	}
	if result.Malformed {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedResponse, result.ParseError)
	}

	var patch struct {
		Headline      *string `json:"headline"`
		SourcePattern *string `json:"source_pattern"`
	}
	if err := json.Unmarshal(result.JSON, &patch); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if patch.Headline != nil && *patch.Headline != "" {
		item.Headline = *patch.Headline
	}
	if patch.SourcePattern != nil && *patch.SourcePattern != "" {
		item.SourcePattern = *patch.SourcePattern
	}
	item.Status = domain.StatusPending
	h.logger.Info().Str("batch_id", batch.ID).Str("item_id", itemID).Msg("headline refined")
	return item, nil
}

func parseHeadlines(raw json.RawMessage) ([]domain.HeadlineItem, []string) {
	var payload headlinePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, []string{fmt.Sprintf("decode headline payload: %v", err)}
	}

	var items []domain.HeadlineItem
	var dropped []string
	seen := make(map[string]struct{})
	for i, gh := range payload.GeneratedHeadlines {
		if gh.Headline == "" {
			dropped = append(dropped, fmt.Sprintf("headline %d missing text, dropped", i+1))
			continue
		}
		id := gh.ID
		if id == "" {
			id = fmt.Sprintf("hl_%d", i+1)
		}
		if _, dup := seen[id]; dup {
			id = newID("hl_", 8)
		}
		seen[id] = struct{}{}
		items = append(items, domain.HeadlineItem{
			ID:            id,
			Headline:      gh.Headline,
			SourcePattern: gh.SourcePattern,
			Status:        domain.StatusPending,
		})
	}
	return items, dropped
}

func newID(prefix string, n int) string {
	hex := fmt.Sprintf("%x", [16]byte(uuid.New()))
	if n > len(hex) {
		n = len(hex)
	}
	return prefix + hex[:n]
}
