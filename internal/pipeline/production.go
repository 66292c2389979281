package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"producer/internal/domain"
	"producer/internal/infra"
	"producer/internal/media"
	"producer/internal/providers/video"
	"producer/internal/storage"
)

// Composer is the narrow contract the orchestrator needs from the encoder
// layer.
type Composer interface {
	Compose(ctx context.Context, req media.ComposeRequest) error
}

// Orchestrator drives the per-item production sub-pipeline over a batch's
// visual blueprints: clamp duration, submit and poll the generation job,
// retrieve the asset, compose the final artifact. One item's failure never
// aborts the batch; failures are counted and recorded instead.
type Orchestrator struct {
	repo      domain.BatchRepository
	generator video.Generator
	composer  Composer
	store     *storage.FileStore
	baseURL   string
	settings  ProductionSettings
	logger    infra.Logger

	pollInterval time.Duration
	timeout      time.Duration
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Repo      domain.BatchRepository
	Generator video.Generator
	Composer  Composer
	Store     *storage.FileStore
	BaseURL   string
	Settings  ProductionSettings
	Logger    infra.Logger
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	settings := opts.Settings
	settings.ApplyDefaults()
	return &Orchestrator{
		repo:         opts.Repo,
		generator:    opts.Generator,
		composer:     opts.Composer,
		store:        opts.Store,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		settings:     settings,
		logger:       infra.ComponentLogger(opts.Logger, "production"),
		pollInterval: time.Duration(settings.PollIntervalSeconds) * time.Second,
		timeout:      time.Duration(settings.TimeoutSeconds) * time.Second,
	}
}

// Run processes every blueprint not already COMPLETED, one at a time in
// collection order, then moves the batch to COMPLETED unconditionally. The
// batch is saved after each item so status polls observe progress.
func (o *Orchestrator) Run(ctx context.Context, batchID string) error {
	batch, err := o.repo.Get(ctx, batchID)
	if err != nil {
		return err
	}

	for i := range batch.Visuals {
		item := &batch.Visuals[i]
		if item.Status == domain.StatusCompleted {
			continue
		}
		item.Status = domain.StatusProcessing
		if err := o.repo.Save(ctx, batch); err != nil {
			return fmt.Errorf("save batch: %w", err)
		}

		if err := o.produceItem(ctx, item); err != nil {
			item.Status = domain.StatusFailed
			batch.FailedItems++
			batch.RecordError(item.ID, err.Error())
			o.logger.Error().Err(err).Str("batch_id", batch.ID).Str("item_id", item.ID).Msg("item production failed")
		} else {
			item.Status = domain.StatusCompleted
			batch.CompletedItems++
			o.logger.Info().Str("batch_id", batch.ID).Str("item_id", item.ID).Msg("item produced")
		}
		if err := o.repo.Save(ctx, batch); err != nil {
			return fmt.Errorf("save batch: %w", err)
		}
	}

	batch.State = domain.StateCompleted
	if err := o.repo.Save(ctx, batch); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	o.writeReport(ctx, batch)
	o.logger.Info().
		Str("batch_id", batch.ID).
		Int("completed", batch.CompletedItems).
		Int("failed", batch.FailedItems).
		Msg("production run finished")
	return nil
}

func (o *Orchestrator) produceItem(ctx context.Context, item *domain.VisualItem) error {
	duration := clampDuration(item.DurationSeconds, o.settings.MinDurationSeconds, o.settings.MaxDurationSeconds)

	assetURL, err := o.generateAsset(ctx, item.VideoPrompt, duration)
	degraded := false
	if err != nil {
		if o.settings.DisableFallback || o.settings.FallbackAssetURL == "" {
			return err
		}
		o.logger.Warn().Err(err).Str("item_id", item.ID).Msg("generation failed, using stock fallback asset")
		assetURL = o.settings.FallbackAssetURL
		degraded = true
	}
	item.RawAssetRef = assetURL
	item.Degraded = degraded

	key := fmt.Sprintf("videos/final_%s.mp4", item.ID)
	outPath, err := o.store.Path(key)
	if err != nil {
		return err
	}
	if err := o.composer.Compose(ctx, media.ComposeRequest{
		SourceRef:  assetURL,
		TextLines:  item.TextLines,
		OutputPath: outPath,
	}); err != nil {
		return err
	}
	item.FinalAssetRef = o.baseURL + "/" + key
	return nil
}

// generateAsset submits the job and polls it on a fixed interval until done
// or the submission-to-completion wall clock elapses.
func (o *Orchestrator) generateAsset(ctx context.Context, prompt string, durationSeconds int) (string, error) {
	job, err := o.generator.Submit(ctx, video.SubmitRequest{Prompt: prompt, DurationSeconds: durationSeconds})
	if err != nil {
		return "", fmt.Errorf("submit generation job: %w", err)
	}

	deadline := time.Now().Add(o.timeout)
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: job %s exceeded %s", domain.ErrProductionTimeout, job.Name, o.timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(o.pollInterval):
		}

		res, err := o.generator.Poll(ctx, job)
		if err != nil {
			return "", fmt.Errorf("poll generation job: %w", err)
		}
		if res.Done {
			return res.AssetURL, nil
		}
	}
}

// clampDuration maps the requested duration into the provider's supported
// bound, truncating toward the lower integer.
func clampDuration(seconds float64, minSeconds, maxSeconds int) int {
	d := int(seconds)
	if d < minSeconds {
		return minSeconds
	}
	if d > maxSeconds {
		return maxSeconds
	}
	return d
}

// writeReport persists a small production summary next to the artifacts.
// Failures here are logged only; the report is a convenience, not state.
func (o *Orchestrator) writeReport(ctx context.Context, batch *domain.Batch) {
	report := struct {
		BatchID        string    `json:"batch_id"`
		CompletedItems int       `json:"completed_items"`
		FailedItems    int       `json:"failed_items"`
		Errors         []string  `json:"errors,omitempty"`
		FinishedAt     time.Time `json:"finished_at"`
	}{
		BatchID:        batch.ID,
		CompletedItems: batch.CompletedItems,
		FailedItems:    batch.FailedItems,
		Errors:         batch.Errors,
		FinishedAt:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return
	}
	key := fmt.Sprintf("batches/%s/report.json", batch.ID)
	if _, err := o.store.Write(ctx, key, data); err != nil {
		o.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("could not write production report")
	}
}
