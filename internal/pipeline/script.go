package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"producer/internal/domain"
	"producer/internal/infra"
	"producer/internal/providers/genai"
)

// ScriptWriter runs the second pipeline stage: turn approved headlines into
// scripts, each carrying a non-empty reasoning rationale.
type ScriptWriter struct {
	gen    *genai.Client
	repo   domain.BatchRepository
	logger infra.Logger
}

func NewScriptWriter(gen *genai.Client, repo domain.BatchRepository, logger infra.Logger) *ScriptWriter {
	return &ScriptWriter{
		gen:    gen,
		repo:   repo,
		logger: infra.ComponentLogger(logger, "script_writer"),
	}
}

type generatedScript struct {
	ID        string `json:"id"`
	Headline  string `json:"headline"`
	Caption   string `json:"caption"`
	Reasoning string `json:"reasoning"`
	HookType  string `json:"hook_type"`
	CTA       string `json:"cta"`
}

// Draft applies the headline approval decision, drafts scripts for the
// approved headlines and advances the batch to REVIEW_SCRIPTS. The stage is
// all-or-nothing: any boundary failure leaves the batch state unchanged, an
// unrecoverable generation failure moves it to FAILED.
func (s *ScriptWriter) Draft(ctx context.Context, batchID string, approvedIDs, rejectedIDs []string, edits map[string]string) (*domain.Batch, error) {
	batch, err := s.repo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := batch.EnsureState(domain.StateReviewHeadlines); err != nil {
		return nil, err
	}

	review := newReviewSet(approvedIDs, rejectedIDs)
	var approved []domain.HeadlineItem
	for i := range batch.Headlines {
		item := &batch.Headlines[i]
		if edit, ok := edits[item.ID]; ok && edit != "" && review.isApproved(item.ID) {
			item.Headline = edit
		}
		item.Status = review.statusFor(item.ID, item.Status)
		if item.Status == domain.StatusApproved {
			approved = append(approved, *item)
		}
	}
	if len(approved) == 0 {
		return nil, fmt.Errorf("%w: no headlines approved", domain.ErrValidation)
	}

	batch.State = domain.StateDrafting
	if err := s.repo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	result, err := s.gen.GenerateJSON(ctx, genai.GenerateRequest{Prompt: scriptWriterPrompt(approved), Temperature: 0.8, ExtendedReasoning: true})
	if err != nil {
		batch.Fail(batch.ID, err.Error())
		_ = s.repo.Save(ctx, batch)
		return nil, err
	}
	if result.Malformed {
		batch.Fail(batch.ID, "script drafting returned malformed output")
		_ = s.repo.Save(ctx, batch)
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedResponse, result.ParseError)
	}

	scripts, dropped := parseScripts(result.JSON, approved)
	for _, msg := range dropped {
		batch.RecordError(batch.ID, msg)
	}
	if len(scripts) == 0 {
		batch.Fail(batch.ID, "no valid scripts generated")
		_ = s.repo.Save(ctx, batch)
		return nil, fmt.Errorf("%w: no valid scripts generated", domain.ErrGenerationFailed)
	}

	batch.Scripts = scripts
	batch.TotalItems = len(scripts)
	batch.State = domain.StateReviewScripts
	if err := s.repo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	s.logger.Info().Str("batch_id", batch.ID).Int("scripts", len(scripts)).Msg("scripts drafted")
	return batch, nil
}

// Refine regenerates one script from free-text feedback, merging only the
// fields present in the result. Reasoning survives every regeneration: an
// empty or absent reasoning in the result keeps the existing one. The item is
// reset to PENDING.
func (s *ScriptWriter) Refine(ctx context.Context, batch *domain.Batch, itemID, feedback string) (*domain.ScriptItem, error) {
	idx := -1
	for i := range batch.Scripts {
		if batch.Scripts[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: script %s in batch %s", domain.ErrNotFound, itemID, batch.ID)
	}
	item := &batch.Scripts[idx]

	result, err := s.gen.GenerateJSON(ctx, genai.GenerateRequest{Prompt: refinePrompt(item, feedback), Temperature: 0.8})
	if err != nil {
		return nil, err
	}
	if result.Malformed {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedResponse, result.ParseError)
	}

	var patch struct {
		Headline  *string `json:"headline"`
		Caption   *string `json:"caption"`
		Reasoning *string `json:"reasoning"`
		HookType  *string `json:"hook_type"`
		CTA       *string `json:"cta"`
	}
	if err := json.Unmarshal(result.JSON, &patch); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if patch.Headline != nil && *patch.Headline != "" {
		item.Headline = *patch.Headline
	}
	if patch.Caption != nil && *patch.Caption != "" {
		item.Caption = *patch.Caption
	}
	if patch.Reasoning != nil && *patch.Reasoning != "" {
		item.Reasoning = *patch.Reasoning
	}
	if patch.HookType != nil && *patch.HookType != "" {
		item.HookType = *patch.HookType
	}
	if patch.CTA != nil && *patch.CTA != "" {
		item.CTA = *patch.CTA
	}
	item.Status = domain.StatusPending
	s.logger.Info().Str("batch_id", batch.ID).Str("item_id", itemID).Msg("script refined")
	return item, nil
}

// parseScripts validates each generated script: caption and reasoning are
// required, an item missing either is dropped with a note instead of aborting
// the stage. Headlines are backfilled from the approved set by id.
func parseScripts(raw json.RawMessage, approved []domain.HeadlineItem) ([]domain.ScriptItem, []string) {
	var payload []generatedScript
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, []string{fmt.Sprintf("decode script payload: %v", err)}
	}

	byID := make(map[string]domain.HeadlineItem, len(approved))
	for _, h := range approved {
		byID[h.ID] = h
	}

	var items []domain.ScriptItem
	var dropped []string
	for i, gs := range payload {
		id := gs.ID
		if id == "" {
			dropped = append(dropped, fmt.Sprintf("script %d missing id, dropped", i+1))
			continue
		}
		if gs.Caption == "" {
			dropped = append(dropped, fmt.Sprintf("%s: script missing caption, dropped", id))
			continue
		}
		if gs.Reasoning == "" {
			dropped = append(dropped, fmt.Sprintf("%s: script missing reasoning, dropped", id))
			continue
		}
		headline := gs.Headline
		if src, ok := byID[id]; ok && headline == "" {
			headline = src.Headline
		}
		items = append(items, domain.ScriptItem{
			ID:        id,
			Headline:  headline,
			Caption:   gs.Caption,
			Reasoning: gs.Reasoning,
			HookType:  gs.HookType,
			CTA:       gs.CTA,
			Status:    domain.StatusPending,
		})
	}
	return items, dropped
}
