package pipeline

import (
	"testing"

	"producer/internal/domain"
)

func TestReviewSetRejectionTakesPrecedence(t *testing.T) {
	review := newReviewSet([]string{"a", "b"}, []string{"b", "c"})

	if got := review.statusFor("a", domain.StatusPending); got != domain.StatusApproved {
		t.Fatalf("a: got %s, want APPROVED", got)
	}
	if got := review.statusFor("b", domain.StatusPending); got != domain.StatusRejected {
		t.Fatalf("b in both lists: got %s, want REJECTED", got)
	}
	if got := review.statusFor("c", domain.StatusPending); got != domain.StatusRejected {
		t.Fatalf("c: got %s, want REJECTED", got)
	}
	if review.isApproved("b") {
		t.Fatal("b must not count as approved")
	}
}

func TestReviewSetUnmentionedItemsKeepStatus(t *testing.T) {
	review := newReviewSet([]string{"a"}, nil)

	if got := review.statusFor("z", domain.StatusPending); got != domain.StatusPending {
		t.Fatalf("unmentioned item: got %s, want PENDING", got)
	}
}
