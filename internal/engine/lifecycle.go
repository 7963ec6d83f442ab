package engine

import (
	"fmt"

	"taskline/internal/domain"
)

// ApplyStatus moves t to requested and applies the side effects: a request for
// REWORK bumps the rework count, a completion stamps completed_date with today.
// requested must already be canonical.
func ApplyStatus(t domain.Task, requested domain.Status, today string) domain.Task {
	if requested == domain.StatusRework {
		t.ReworkCount++
	}
	if requested.Completed() {
		t.CompletedDate = &today
	}
	t.Status = requested
	return t
}

var taskTransitions = map[domain.Status][]domain.Status{
	domain.StatusNew:        {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusSubmitted, domain.StatusCancelled},
	domain.StatusSubmitted:  {domain.StatusApproved, domain.StatusRework, domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusRework:     {domain.StatusInProgress, domain.StatusSubmitted, domain.StatusCancelled},
}

// ensureTaskTransition enforces the adjacency graph when strict is set.
// Terminal states have no exits.
func ensureTaskTransition(from, to domain.Status, strict bool) error {
	if !strict {
		return nil
	}
	if from == domain.StatusLegacyCompleted {
		from = domain.StatusApproved
	}
	for _, next := range taskTransitions[from] {
		if next == to {
			return nil
		}
	}
	return ValidationError{Field: "status", Message: fmt.Sprintf("invalid task status transition %s -> %s", from, to)}
}
