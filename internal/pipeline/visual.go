package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"producer/internal/domain"
	"producer/internal/infra"
	"producer/internal/providers/genai"
)

// VisualPlanner runs the third pipeline stage: turn approved scripts into
// production blueprints and advance the batch to PRODUCTION.
type VisualPlanner struct {
	gen    *genai.Client
	repo   domain.BatchRepository
	logger infra.Logger
}

func NewVisualPlanner(gen *genai.Client, repo domain.BatchRepository, logger infra.Logger) *VisualPlanner {
	return &VisualPlanner{
		gen:    gen,
		repo:   repo,
		logger: infra.ComponentLogger(logger, "visual_planner"),
	}
}

type generatedVisual struct {
	ID              string   `json:"id"`
	VideoPrompt     string   `json:"video_prompt"`
	TextLines       []string `json:"text_lines"`
	HighlightWords  []int    `json:"highlight_words"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// Plan applies the script approval decision, generates visual blueprints for
// the approved scripts and advances the batch to PRODUCTION.
func (v *VisualPlanner) Plan(ctx context.Context, batchID string, approvedIDs, rejectedIDs []string) (*domain.Batch, error) {
	batch, err := v.repo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := batch.EnsureState(domain.StateReviewScripts); err != nil {
		return nil, err
	}

	review := newReviewSet(approvedIDs, rejectedIDs)
	var approved []domain.ScriptItem
	for i := range batch.Scripts {
		item := &batch.Scripts[i]
		item.Status = review.statusFor(item.ID, item.Status)
		if item.Status == domain.StatusApproved {
			approved = append(approved, *item)
		}
	}
	if len(approved) == 0 {
		return nil, fmt.Errorf("%w: no scripts approved", domain.ErrValidation)
	}

	result, err := v.gen.GenerateJSON(ctx, genai.GenerateRequest{Prompt: visualPlannerPrompt(approved), Temperature: 0.7})
	if err != nil {
		batch.Fail(batch.ID, err.Error())
		_ = v.repo.Save(ctx, batch)
		return nil, err
	}
	if result.Malformed {
		batch.Fail(batch.ID, "visual planning returned malformed output")
		_ = v.repo.Save(ctx, batch)
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedResponse, result.ParseError)
	}

	visuals, dropped := parseVisuals(result.JSON)
	for _, msg := range dropped {
		batch.RecordError(batch.ID, msg)
	}
	if len(visuals) == 0 {
		batch.Fail(batch.ID, "no valid blueprints generated")
		_ = v.repo.Save(ctx, batch)
		return nil, fmt.Errorf("%w: no valid blueprints generated", domain.ErrGenerationFailed)
	}

	batch.Visuals = visuals
	batch.TotalItems = len(visuals)
	batch.State = domain.StateProduction
	if err := v.repo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	v.logger.Info().Str("batch_id", batch.ID).Int("blueprints", len(visuals)).Msg("blueprints planned")
	return batch, nil
}

func parseVisuals(raw json.RawMessage) ([]domain.VisualItem, []string) {
	var payload []generatedVisual
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, []string{fmt.Sprintf("decode blueprint payload: %v", err)}
	}

	var items []domain.VisualItem
	var dropped []string
	for i, gv := range payload {
		id := gv.ID
		if id == "" {
			dropped = append(dropped, fmt.Sprintf("blueprint %d missing id, dropped", i+1))
			continue
		}
		if gv.VideoPrompt == "" {
			dropped = append(dropped, fmt.Sprintf("%s: blueprint missing video prompt, dropped", id))
			continue
		}
		if len(gv.TextLines) == 0 {
			dropped = append(dropped, fmt.Sprintf("%s: blueprint missing text lines, dropped", id))
			continue
		}
		items = append(items, domain.VisualItem{
			ID:               id,
			VideoPrompt:      gv.VideoPrompt,
			TextLines:        gv.TextLines,
			HighlightIndices: gv.HighlightWords,
			DurationSeconds:  gv.DurationSeconds,
			Status:           domain.StatusPending,
		})
	}
	return items, dropped
}
