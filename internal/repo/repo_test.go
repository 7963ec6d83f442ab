package repo_test

import (
	"context"
	"errors"
	"testing"

	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/migrate"
	"taskline/internal/repo"
)

func ptr(s string) *string { return &s }

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	for _, u := range []domain.User{
		{ID: "MGR001", Name: "John Smith", Role: domain.RoleManager, Department: "Engineering", Active: true},
		{ID: "EMP001", Name: "Neo Anderson", Role: domain.RoleEmployee, Department: "Engineering", ManagerID: ptr("MGR001"), Active: true},
	} {
		if err := r.InsertUser(ctx, nil, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	return r, ctx
}

func TestTaskRoundTripAndOrdering(t *testing.T) {
	r, ctx := newRepo(t)
	tasks := []domain.Task{
		{ID: "T3", Title: "undated", EmployeeID: "EMP001", Department: "Engineering", Severity: domain.SeverityLow, Status: domain.StatusNew},
		{ID: "T2", Title: "later", EmployeeID: "EMP001", ManagerID: ptr("MGR001"), Department: "Engineering", Severity: domain.SeverityHigh, Status: domain.StatusNew, DueDate: ptr("2026-04-01")},
		{ID: "T1", Title: "sooner", Description: "first", EmployeeID: "EMP001", Department: "Engineering", Severity: domain.SeverityMedium, Status: domain.StatusSubmitted, DueDate: ptr("2026-03-01")},
	}
	for _, task := range tasks {
		if err := r.InsertTask(ctx, nil, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	got, err := r.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"T1", "T2", "T3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, got[i].ID, id)
		}
	}
	if got[0].Description != "first" || got[2].DueDate != nil || got[1].ManagerID == nil {
		t.Fatalf("optional columns not round-tripped: %+v", got)
	}

	own, err := r.ListTasks(ctx, repo.TaskFilters{EmployeeID: "EMP001"})
	if err != nil || len(own) != 3 || own[0].ID != "T1" {
		t.Fatalf("employee filter: %v %+v", err, own)
	}
	none, err := r.ListTasks(ctx, repo.TaskFilters{EmployeeID: "MGR001"})
	if err != nil || len(none) != 0 {
		t.Fatalf("employee filter must exclude other assignees: %v %+v", err, none)
	}

	t1 := got[0]
	t1.Status = domain.StatusRework
	t1.ReworkCount = 1
	if err := r.UpdateTask(ctx, nil, t1); err != nil {
		t.Fatal(err)
	}
	reread, err := r.GetTask(ctx, nil, "T1")
	if err != nil || reread.ReworkCount != 1 || reread.Status != domain.StatusRework {
		t.Fatalf("update not persisted: %v %+v", err, reread)
	}

	counts, err := r.CountTasksByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["NEW"] != 2 || counts["REWORK"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	if _, err := r.GetTask(ctx, nil, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.UpdateTask(ctx, nil, domain.Task{ID: "missing"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestUserFoldLookupAndActive(t *testing.T) {
	r, ctx := newRepo(t)
	u, err := r.GetUserFold(ctx, nil, "emp001")
	if err != nil || u.ID != "EMP001" {
		t.Fatalf("fold lookup: %v %+v", err, u)
	}
	if _, err := r.GetUser(ctx, nil, "emp001"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("exact lookup must be case-sensitive, got %v", err)
	}
	if err := r.SetUserActive(ctx, nil, "EMP001", false); err != nil {
		t.Fatal(err)
	}
	u, _ = r.GetUser(ctx, nil, "EMP001")
	if u.Active {
		t.Fatalf("expected user deactivated")
	}
	reports, err := r.ListReports(ctx, nil, "MGR001")
	if err != nil || len(reports) != 1 || reports[0].ID != "EMP001" {
		t.Fatalf("reports: %v %+v", err, reports)
	}
}

func TestAPIKeyHashLookup(t *testing.T) {
	r, ctx := newRepo(t)
	key := domain.APIKey{ID: "k1", UserID: "EMP001", Name: "ci", KeyHash: repo.HashAPIKey("tl_secret")}
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(" tl_secret "))
	if err != nil || got.UserID != "EMP001" || got.CreatedAt == "" {
		t.Fatalf("lookup by hash: %v %+v", err, got)
	}
	if err := r.DeleteAPIKey(ctx, "k1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetAPIKeyByHash(ctx, key.KeyHash); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected deleted key gone, got %v", err)
	}
}
