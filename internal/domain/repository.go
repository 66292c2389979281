package domain

import "context"

// BatchRepository defines persistence for batch aggregates. Implementations
// must return defensive copies so readers can poll a batch mid-transition
// without observing writes in progress.
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	Get(ctx context.Context, id string) (*Batch, error)
	List(ctx context.Context, limit int) ([]BatchSummary, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	// LockBatch serializes mutating operations per batch id. Callers hold the
	// returned unlock for the full span of a stage run or production run.
	LockBatch(id string) (unlock func())
}

// TrendSource supplies harvested viral content records for headline analysis.
type TrendSource interface {
	Fetch(ctx context.Context, lookbackDays, minViews, limit int) ([]ContentRecord, error)
}
