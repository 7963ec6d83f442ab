package engine

import (
	"testing"

	"taskline/internal/domain"
)

func TestApplyStatus(t *testing.T) {
	base := domain.Task{ID: "T", Status: domain.StatusSubmitted, ReworkCount: 1}

	got := ApplyStatus(base, domain.StatusRework, "2026-02-20")
	if got.ReworkCount != 2 || got.Status != domain.StatusRework || got.CompletedDate != nil {
		t.Fatalf("rework: %+v", got)
	}
	got = ApplyStatus(base, domain.StatusApproved, "2026-02-20")
	if got.ReworkCount != 1 || got.CompletedDate == nil || *got.CompletedDate != "2026-02-20" {
		t.Fatalf("approve: %+v", got)
	}
	got = ApplyStatus(base, domain.StatusInProgress, "2026-02-20")
	if got.Status != domain.StatusInProgress || got.ReworkCount != 1 || got.CompletedDate != nil {
		t.Fatalf("in progress: %+v", got)
	}
	if base.ReworkCount != 1 {
		t.Fatalf("input must not be mutated")
	}
}

func TestEnsureTaskTransition(t *testing.T) {
	if err := ensureTaskTransition(domain.StatusApproved, domain.StatusNew, false); err != nil {
		t.Fatalf("lenient mode must allow anything: %v", err)
	}
	cases := []struct {
		from, to domain.Status
		ok       bool
	}{
		{domain.StatusNew, domain.StatusInProgress, true},
		{domain.StatusNew, domain.StatusSubmitted, false},
		{domain.StatusSubmitted, domain.StatusRework, true},
		{domain.StatusRework, domain.StatusSubmitted, true},
		{domain.StatusCancelled, domain.StatusNew, false},
		{domain.StatusLegacyCompleted, domain.StatusInProgress, false},
	}
	for _, tc := range cases {
		err := ensureTaskTransition(tc.from, tc.to, true)
		if (err == nil) != tc.ok {
			t.Fatalf("%s -> %s: got %v want ok=%v", tc.from, tc.to, err, tc.ok)
		}
	}
}
