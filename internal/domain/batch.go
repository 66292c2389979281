package domain

import (
	"fmt"
	"time"
)

// BatchState enumerates the batch production state machine. Transitions are
// forward-only; FAILED is reachable from any state on unrecoverable stage
// error.
type BatchState string

const (
	StatePlanning        BatchState = "PLANNING"
	StateReviewHeadlines BatchState = "REVIEW_HEADLINES"
	StateDrafting        BatchState = "DRAFTING"
	StateReviewScripts   BatchState = "REVIEW_SCRIPTS"
	StateProduction      BatchState = "PRODUCTION"
	StateCompleted       BatchState = "COMPLETED"
	StateFailed          BatchState = "FAILED"
)

// ItemStatus enumerates lifecycle states of individual batch items.
type ItemStatus string

const (
	StatusPending    ItemStatus = "PENDING"
	StatusApproved   ItemStatus = "APPROVED"
	StatusRejected   ItemStatus = "REJECTED"
	StatusProcessing ItemStatus = "PROCESSING"
	StatusCompleted  ItemStatus = "COMPLETED"
	StatusFailed     ItemStatus = "FAILED"
)

// HeadlineItem is a generated headline candidate awaiting review.
type HeadlineItem struct {
	ID            string     `json:"id"`
	Headline      string     `json:"headline"`
	SourcePattern string     `json:"source_pattern,omitempty"`
	Status        ItemStatus `json:"status"`
}

// ScriptItem is a drafted caption for an approved headline. Reasoning is the
// auditable rationale for why the script should work and must stay non-empty
// across regenerations.
type ScriptItem struct {
	ID        string     `json:"id"`
	Headline  string     `json:"headline"`
	Caption   string     `json:"caption"`
	Reasoning string     `json:"reasoning"`
	HookType  string     `json:"hook_type,omitempty"`
	CTA       string     `json:"cta,omitempty"`
	Status    ItemStatus `json:"status"`
}

// VisualItem is the production blueprint for one video: the generation prompt,
// the overlay text and the asset references filled in during production.
// Degraded marks items whose raw asset came from the stock fallback rather
// than the video generation provider.
type VisualItem struct {
	ID               string     `json:"id"`
	VideoPrompt      string     `json:"video_prompt"`
	TextLines        []string   `json:"text_lines"`
	HighlightIndices []int      `json:"highlight_indices,omitempty"`
	DurationSeconds  float64    `json:"duration_seconds"`
	RawAssetRef      string     `json:"raw_asset_ref,omitempty"`
	FinalAssetRef    string     `json:"final_asset_ref,omitempty"`
	Degraded         bool       `json:"degraded,omitempty"`
	Status           ItemStatus `json:"status"`
}

// Batch is one run of the production pipeline. It owns the item collections
// of every stage plus running production counters. A batch is mutated only
// under the repository's per-id lock, never concurrently for the same id.
type Batch struct {
	ID             string         `json:"id"`
	State          BatchState     `json:"state"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	TotalItems     int            `json:"total_items"`
	CompletedItems int            `json:"completed_items"`
	FailedItems    int            `json:"failed_items"`
	Headlines      []HeadlineItem `json:"headlines"`
	Scripts        []ScriptItem   `json:"scripts"`
	Visuals        []VisualItem   `json:"visuals"`
	Errors         []string       `json:"errors,omitempty"`
}

// BatchSummary is the lightweight listing projection.
type BatchSummary struct {
	ID             string     `json:"id"`
	State          BatchState `json:"state"`
	TotalItems     int        `json:"total_items"`
	CompletedItems int        `json:"completed_items"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ContentRecord is one harvested viral content item supplied by a TrendSource.
type ContentRecord struct {
	ID          string    `json:"id"`
	Headline    string    `json:"headline"`
	Transcript  string    `json:"transcript,omitempty"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url,omitempty"`
}

// EnsureState guards a stage call: it fails with ErrInvalidState unless the
// batch is in exactly the state the stage expects.
func (b *Batch) EnsureState(want BatchState) error {
	if b.State != want {
		return fmt.Errorf("%w: batch %s is in %s, operation requires %s", ErrInvalidState, b.ID, b.State, want)
	}
	return nil
}

// RecordError appends an item-scoped error note to the batch.
func (b *Batch) RecordError(itemID, message string) {
	b.Errors = append(b.Errors, fmt.Sprintf("%s: %s", itemID, message))
}

// Fail moves the batch to FAILED and records the cause.
func (b *Batch) Fail(itemID, message string) {
	b.State = StateFailed
	b.RecordError(itemID, message)
}

// Clone returns a deep copy so repository readers never alias a batch that a
// stage is still mutating.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	out := *b
	out.Headlines = append([]HeadlineItem(nil), b.Headlines...)
	out.Scripts = append([]ScriptItem(nil), b.Scripts...)
	out.Errors = append([]string(nil), b.Errors...)
	out.Visuals = make([]VisualItem, len(b.Visuals))
	for i, v := range b.Visuals {
		v.TextLines = append([]string(nil), v.TextLines...)
		v.HighlightIndices = append([]int(nil), v.HighlightIndices...)
		out.Visuals[i] = v
	}
	return &out
}

// Summary projects the batch into its listing form.
func (b *Batch) Summary() BatchSummary {
	return BatchSummary{
		ID:             b.ID,
		State:          b.State,
		TotalItems:     b.TotalItems,
		CompletedItems: b.CompletedItems,
		CreatedAt:      b.CreatedAt,
	}
}
