package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEnsureStateGuardsTransitions(t *testing.T) {
	b := &Batch{ID: "b1", State: StateReviewHeadlines}

	if err := b.EnsureState(StateReviewHeadlines); err != nil {
		t.Fatalf("EnsureState returned error: %v", err)
	}
	err := b.EnsureState(StateReviewScripts)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if b.State != StateReviewHeadlines {
		t.Fatalf("guard mutated state to %s", b.State)
	}
}

func TestRecordErrorFormat(t *testing.T) {
	b := &Batch{ID: "b1"}
	b.RecordError("hl_2", "encoder exited 1")

	if len(b.Errors) != 1 || b.Errors[0] != "hl_2: encoder exited 1" {
		t.Fatalf("errors = %v", b.Errors)
	}
}

func TestFailMovesToFailed(t *testing.T) {
	b := &Batch{ID: "b1", State: StateDrafting}
	b.Fail("b1", "no valid scripts generated")

	if b.State != StateFailed {
		t.Fatalf("state = %s, want FAILED", b.State)
	}
	if len(b.Errors) != 1 {
		t.Fatalf("errors = %v", b.Errors)
	}
}

func TestCloneIsDeep(t *testing.T) {
	b := &Batch{
		ID:        "b1",
		State:     StateProduction,
		CreatedAt: time.Now(),
		Visuals: []VisualItem{{
			ID:        "hl_1",
			TextLines: []string{"A", "B"},
			Status:    StatusPending,
		}},
		Errors: []string{"hl_0: earlier note"},
	}

	c := b.Clone()
	c.Visuals[0].TextLines[0] = "MUTATED"
	c.Visuals[0].Status = StatusFailed
	c.Errors[0] = "mutated"

	if b.Visuals[0].TextLines[0] != "A" {
		t.Fatal("clone aliased TextLines")
	}
	if b.Visuals[0].Status != StatusPending {
		t.Fatal("clone aliased visual items")
	}
	if b.Errors[0] != "hl_0: earlier note" {
		t.Fatal("clone aliased errors")
	}
}
