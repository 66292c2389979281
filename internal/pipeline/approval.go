package pipeline

import "producer/internal/domain"

// reviewSet captures one approval decision: which item ids were approved and
// which were rejected. Rejection takes precedence when an id appears in both
// lists; ids in neither list keep their current status, so unmentioned items
// stay PENDING across stage advances.
type reviewSet struct {
	approved map[string]struct{}
	rejected map[string]struct{}
}

func newReviewSet(approvedIDs, rejectedIDs []string) reviewSet {
	r := reviewSet{
		approved: make(map[string]struct{}, len(approvedIDs)),
		rejected: make(map[string]struct{}, len(rejectedIDs)),
	}
	for _, id := range approvedIDs {
		r.approved[id] = struct{}{}
	}
	for _, id := range rejectedIDs {
		r.rejected[id] = struct{}{}
	}
	return r
}

func (r reviewSet) statusFor(id string, current domain.ItemStatus) domain.ItemStatus {
	if _, ok := r.rejected[id]; ok {
		return domain.StatusRejected
	}
	if _, ok := r.approved[id]; ok {
		return domain.StatusApproved
	}
	return current
}

func (r reviewSet) isApproved(id string) bool {
	if _, ok := r.rejected[id]; ok {
		return false
	}
	_, ok := r.approved[id]
	return ok
}
