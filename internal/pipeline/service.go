package pipeline

import (
	"context"
	"fmt"

	"producer/internal/domain"
	"producer/internal/infra"
)

// ProductionTicket acknowledges a queued production run.
type ProductionTicket struct {
	Queued     bool `json:"queued"`
	ItemsCount int  `json:"items_count"`
}

// Service is the boundary facade over the pipeline stages. It owns per-batch
// serialization: every mutating operation runs under the repository's per-id
// lock so an approval call and a concurrently running production task never
// mutate the same batch at once.
type Service struct {
	repo      domain.BatchRepository
	headlines *HeadlineGenerator
	scripts   *ScriptWriter
	visuals   *VisualPlanner
	producer  *Orchestrator
	logger    infra.Logger
}

// ServiceOptions configures the pipeline service.
type ServiceOptions struct {
	Repo      domain.BatchRepository
	Headlines *HeadlineGenerator
	Scripts   *ScriptWriter
	Visuals   *VisualPlanner
	Producer  *Orchestrator
	Logger    infra.Logger
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		repo:      opts.Repo,
		headlines: opts.Headlines,
		scripts:   opts.Scripts,
		visuals:   opts.Visuals,
		producer:  opts.Producer,
		logger:    infra.ComponentLogger(opts.Logger, "pipeline"),
	}
}

// StartBatch creates a batch and generates headline candidates. The batch id
// does not exist before this call, so no per-id lock is needed.
func (s *Service) StartBatch(ctx context.Context, req StartRequest) (*domain.Batch, error) {
	return s.headlines.Start(ctx, req)
}

// GetBatch returns a defensive copy of the batch.
func (s *Service) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	return s.repo.Get(ctx, id)
}

// ListBatches returns summaries ordered newest-created first.
func (s *Service) ListBatches(ctx context.Context, limit int) ([]domain.BatchSummary, error) {
	return s.repo.List(ctx, limit)
}

// DeleteBatch removes a batch. Administrative; the pipeline never deletes.
func (s *Service) DeleteBatch(ctx context.Context, id string) error {
	unlock := s.repo.LockBatch(id)
	defer unlock()
	return s.repo.Delete(ctx, id)
}

// ApproveHeadlines applies the headline review decision and drafts scripts.
// Requires REVIEW_HEADLINES.
func (s *Service) ApproveHeadlines(ctx context.Context, batchID string, approvedIDs, rejectedIDs []string, edits map[string]string) (*domain.Batch, error) {
	unlock := s.repo.LockBatch(batchID)
	defer unlock()
	return s.scripts.Draft(ctx, batchID, approvedIDs, rejectedIDs, edits)
}

// ApproveScripts applies the script review decision and plans visual
// blueprints. Requires REVIEW_SCRIPTS. Feedback entries trigger single-item
// regeneration before the approval filter is applied.
func (s *Service) ApproveScripts(ctx context.Context, batchID string, approvedIDs, rejectedIDs []string, feedback map[string]string) (*domain.Batch, error) {
	unlock := s.repo.LockBatch(batchID)
	defer unlock()

	if len(feedback) > 0 {
		batch, err := s.repo.Get(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if err := batch.EnsureState(domain.StateReviewScripts); err != nil {
			return nil, err
		}
		for itemID, text := range feedback {
			if _, err := s.scripts.Refine(ctx, batch, itemID, text); err != nil {
				return nil, fmt.Errorf("refine %s: %w", itemID, err)
			}
		}
		if err := s.repo.Save(ctx, batch); err != nil {
			return nil, fmt.Errorf("save batch: %w", err)
		}
	}

	return s.visuals.Plan(ctx, batchID, approvedIDs, rejectedIDs)
}

// StartProduction queues the production run for a batch in PRODUCTION and
// returns immediately. The run executes on a detached background task with
// its own context and per-id lock; batch status polls observe its progress.
func (s *Service) StartProduction(ctx context.Context, batchID string) (*ProductionTicket, error) {
	batch, err := s.repo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := batch.EnsureState(domain.StateProduction); err != nil {
		return nil, err
	}

	items := len(batch.Visuals)
	go func() {
		unlock := s.repo.LockBatch(batchID)
		defer unlock()
		if err := s.producer.Run(context.Background(), batchID); err != nil {
			s.logger.Error().Err(err).Str("batch_id", batchID).Msg("production run aborted")
		}
	}()

	s.logger.Info().Str("batch_id", batchID).Int("items", items).Msg("production queued")
	return &ProductionTicket{Queued: true, ItemsCount: items}, nil
}

// RegenerateItem regenerates one item from free-text feedback. The target
// collection is the one under review for the batch's current state.
func (s *Service) RegenerateItem(ctx context.Context, batchID, itemID, feedbackText string) (any, error) {
	unlock := s.repo.LockBatch(batchID)
	defer unlock()

	batch, err := s.repo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	var item any
	switch batch.State {
	case domain.StateReviewHeadlines:
		item, err = s.headlines.Refine(ctx, batch, itemID, feedbackText)
	case domain.StateReviewScripts:
		item, err = s.scripts.Refine(ctx, batch, itemID, feedbackText)
	default:
		return nil, fmt.Errorf("%w: batch %s is in %s, regeneration requires a review state", domain.ErrInvalidState, batchID, batch.State)
	}
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	return item, nil
}
