package scoring

import (
	"testing"

	"taskline/internal/config"
	"taskline/internal/domain"
)

func ptr(s string) *string { return &s }

func done(id, employee, due, completed string, rework int) domain.Task {
	return domain.Task{ID: id, EmployeeID: employee, Status: domain.StatusApproved, DueDate: ptr(due), CompletedDate: ptr(completed), ReworkCount: rework}
}

func TestEmployeeScore(t *testing.T) {
	s := config.Default().Scoring
	if got := EmployeeScore(nil, s); got != 0 {
		t.Fatalf("expected 0 without tasks, got %v", got)
	}
	tasks := []domain.Task{
		done("a", "E", "2026-01-10", "2026-01-09", 0),
		done("b", "E", "2026-01-10", "2026-01-12", 1),
		{ID: "c", EmployeeID: "E", Status: domain.StatusInProgress},
		{ID: "d", EmployeeID: "E", Status: domain.StatusNew},
	}
	// completion 0.5, quality 0.5, timeliness 0.5, productivity 0.2
	// 100 * (0.40*0.5 + 0.25*0.5 + 0.20*0.5 + 0.15*0.2) = 45.5
	if got := EmployeeScore(tasks, s); got != 45.5 {
		t.Fatalf("unexpected score %v", got)
	}
}

func TestEmployeeScoreCountsLegacyCompletion(t *testing.T) {
	s := config.Default().Scoring
	tasks := []domain.Task{{ID: "a", EmployeeID: "E", Status: domain.StatusLegacyCompleted, DueDate: ptr("2026-01-10"), CompletedDate: ptr("2026-01-10")}}
	// 100 * (0.40 + 0.25 + 0.20 + 0.15*0.1) = 86.5
	if got := EmployeeScore(tasks, s); got != 86.5 {
		t.Fatalf("unexpected score %v", got)
	}
}

func TestManagerScore(t *testing.T) {
	s := config.Default().Scoring
	team := []domain.User{{ID: "E1", Active: true}, {ID: "E2", Active: false}}
	if got := ManagerScore(nil, nil, s); got != 0 {
		t.Fatalf("expected 0 without team, got %v", got)
	}
	if got := ManagerScore(team, nil, s); got != 0 {
		t.Fatalf("expected 0 without team tasks, got %v", got)
	}
	tasks := []domain.Task{
		done("a", "E1", "2026-01-10", "2026-01-09", 0),
		{ID: "b", EmployeeID: "E2", Status: domain.StatusSubmitted},
	}
	// completion 0.5, low rework 1, approval 0.5, stability 0.5
	// 100 * (0.35*0.5 + 0.30*1 + 0.20*0.5 + 0.15*0.5) = 65
	if got := ManagerScore(team, tasks, s); got != 65 {
		t.Fatalf("unexpected score %v", got)
	}
}

func TestRankEmployeesOrdersDescendingWithIDTiebreak(t *testing.T) {
	s := config.Default().Scoring
	employees := []domain.User{{ID: "E3"}, {ID: "E2"}, {ID: "E1"}}
	tasks := []domain.Task{
		done("a", "E1", "2026-01-10", "2026-01-09", 0),
		{ID: "b", EmployeeID: "E2", Status: domain.StatusNew},
	}
	got := RankEmployees(employees, tasks, s)
	want := []string{"E1", "E2", "E3"}
	for i, id := range want {
		if got[i].UserID != id || got[i].Rank != i+1 {
			t.Fatalf("position %d: %+v", i, got[i])
		}
	}
	if got[0].Tasks != 1 || got[0].Completed != 1 {
		t.Fatalf("unexpected counts %+v", got[0])
	}
}

func TestRankManagersUsesDirectReports(t *testing.T) {
	s := config.Default().Scoring
	managers := []domain.User{{ID: "M1"}, {ID: "M2"}}
	reports := map[string][]domain.User{
		"M1": {{ID: "E1", Active: true}},
		"M2": {{ID: "E2", Active: true}},
	}
	tasks := []domain.Task{
		{ID: "a", EmployeeID: "E1", Status: domain.StatusNew},
		done("b", "E2", "2026-01-10", "2026-01-09", 0),
	}
	got := RankManagers(managers, reports, tasks, s)
	if got[0].UserID != "M2" || got[0].Score != 100 {
		t.Fatalf("expected M2 first with 100, got %+v", got[0])
	}
	if got[1].UserID != "M1" || got[1].Rank != 2 {
		t.Fatalf("unexpected second entry %+v", got[1])
	}
}
