package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"producer/internal/domain"
)

// BatchRepositoryMemory implements domain.BatchRepository with an in-process
// map. It is the default store; swap it for a durable implementation by
// satisfying the same interface. Save and Get exchange deep copies so callers
// never alias the stored aggregate.
type BatchRepositoryMemory struct {
	mu      sync.RWMutex
	batches map[string]*domain.Batch

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewBatchRepository constructs an empty in-memory batch repository.
func NewBatchRepository() *BatchRepositoryMemory {
	return &BatchRepositoryMemory{
		batches: make(map[string]*domain.Batch),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Save stores a deep copy of the batch and stamps UpdatedAt.
func (r *BatchRepositoryMemory) Save(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := batch.Clone()
	stored.UpdatedAt = time.Now().UTC()
	batch.UpdatedAt = stored.UpdatedAt

	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[stored.ID] = stored
	return nil
}

// Get returns a deep copy of the batch or domain.ErrNotFound.
func (r *BatchRepositoryMemory) Get(ctx context.Context, id string) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return batch.Clone(), nil
}

// List returns batch summaries ordered newest-created first, bounded by limit
// when positive.
func (r *BatchRepositoryMemory) List(ctx context.Context, limit int) ([]domain.BatchSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	summaries := make([]domain.BatchSummary, 0, len(r.batches))
	for _, batch := range r.batches {
		summaries = append(summaries, batch.Summary())
	}
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Delete removes the batch or returns domain.ErrNotFound.
func (r *BatchRepositoryMemory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.batches, id)
	return nil
}

// Count returns the number of stored batches.
func (r *BatchRepositoryMemory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.batches), nil
}

// LockBatch serializes mutating operations per batch id. The per-id mutex is
// created on first use and kept for the life of the process; batch ids are
// few and long-lived, so the map is never pruned.
func (r *BatchRepositoryMemory) LockBatch(id string) (unlock func()) {
	r.lockMu.Lock()
	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	r.lockMu.Unlock()

	m.Lock()
	return m.Unlock
}

var _ domain.BatchRepository = (*BatchRepositoryMemory)(nil)
