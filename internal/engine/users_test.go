package engine_test

import (
	"errors"
	"testing"

	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/engine/auth"
)

func TestCreateUserPolicyAndValidation(t *testing.T) {
	env := newTestEnv(t)
	draft := engine.UserDraft{ID: "EMP050", Name: "New Hire", Role: "Employee", Department: "Sales", ManagerID: ptr("MGR002"), Password: "s3cret"}

	var forbidden auth.ForbiddenError
	if _, err := env.Engine.CreateUser(env.Ctx, manager, draft); !errors.As(err, &forbidden) {
		t.Fatalf("manager must not create users, got %v", err)
	}
	u, err := env.Engine.CreateUser(env.Ctx, admin, draft)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !u.Active || u.PasswordHash == "s3cret" || u.ManagerID == nil || *u.ManagerID != "MGR002" {
		t.Fatalf("unexpected user %+v", u)
	}

	dup := draft
	dup.ID = "emp050"
	var conflict engine.ConflictError
	if _, err := env.Engine.CreateUser(env.Ctx, cfo, dup); !errors.As(err, &conflict) {
		t.Fatalf("expected case-insensitive conflict, got %v", err)
	}

	var verr engine.ValidationError
	bad := []engine.UserDraft{
		{ID: "X1", Name: "X", Role: "Owner", Department: "D", Password: "p"},
		{ID: "X2", Name: "X", Role: "Employee", Department: "D", Password: ""},
		{ID: "X3", Name: "X", Role: "Employee", Department: "D", Password: "p", ManagerID: ptr("NOBODY")},
		{ID: "X4", Name: "X", Role: "Manager", Department: "D", Password: "p", ManagerID: ptr("X4")},
	}
	for _, d := range bad {
		if _, err := env.Engine.CreateUser(env.Ctx, cfo, d); !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", d.ID, err)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.Authenticate(env.Ctx, "  emp001 ", "password123")
	if err != nil || u.ID != "EMP001" {
		t.Fatalf("expected case-insensitive login, got %+v %v", u, err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "EMP001", "wrong"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "GHOST", "password123"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}

	if _, err := env.Engine.SetUserActive(env.Ctx, employee, "EMP001", false); err == nil {
		t.Fatalf("employee must not deactivate users")
	}
	deactivated, err := env.Engine.SetUserActive(env.Ctx, cfo, "EMP001", false)
	if err != nil || deactivated.Active {
		t.Fatalf("deactivate: %+v %v", deactivated, err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "EMP001", "password123"); !errors.Is(err, engine.ErrInactiveUser) {
		t.Fatalf("expected inactive user, got %v", err)
	}
	if _, err := env.Engine.SetUserActive(env.Ctx, cfo, "GHOST", true); !errors.As(err, new(engine.NotFoundError)) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeactivatedAssigneeKeepsTasks(t *testing.T) {
	env := newTestEnv(t)
	env.createTaskX(t)
	if _, err := env.Engine.SetUserActive(env.Ctx, admin, "EMP001", false); err != nil {
		t.Fatal(err)
	}
	tasks, err := env.Engine.ListTasks(env.Ctx, manager)
	if err != nil || len(tasks) != 1 || tasks[0].EmployeeID != "EMP001" {
		t.Fatalf("task must still reference EMP001: %+v %v", tasks, err)
	}
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.ResetPassword(env.Ctx, manager, "EMP001", "fresh"); err == nil {
		t.Fatalf("manager must not reset passwords")
	}
	if err := env.Engine.ResetPassword(env.Ctx, admin, "EMP001", "fresh"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "EMP001", "fresh"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := env.Engine.ResetPassword(env.Ctx, admin, "GHOST", "fresh"); !errors.As(err, new(engine.NotFoundError)) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListUsersOrderedByRoleThenName(t *testing.T) {
	env := newTestEnv(t)
	users, err := env.Engine.ListUsers(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ADMIN001", "CFO001", "EMP004", "EMP001", "EMP002", "MGR002", "MGR001"}
	if len(users) != len(want) {
		t.Fatalf("got %d users", len(users))
	}
	for i, id := range want {
		if users[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, users[i].ID, id)
		}
	}
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	plain, key, err := env.Engine.CreateAPIKey(env.Ctx, employee, "", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	if key.UserID != "EMP001" || plain == "" || key.KeyHash == plain {
		t.Fatalf("unexpected key %+v", key)
	}
	p, err := env.Engine.ResolveAPIKey(env.Ctx, plain)
	if err != nil || p != employee {
		t.Fatalf("resolve: %+v %v", p, err)
	}
	if _, err := env.Engine.ResolveAPIKey(env.Ctx, "tl_bogus"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := env.Engine.CreateAPIKey(env.Ctx, employee, "EMP002", ""); err == nil {
		t.Fatalf("employee must not issue keys for others")
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, manager, key.ID); err == nil {
		t.Fatalf("manager must not revoke someone else's key")
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, employee, key.ID); err != nil {
		t.Fatalf("owner revoke: %v", err)
	}
	if _, err := env.Engine.ResolveAPIKey(env.Ctx, plain); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("revoked key must not resolve, got %v", err)
	}
}

func TestBootstrapOnlyOnEmptyOrg(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Bootstrap(env.Ctx, engine.UserDraft{ID: "ROOT", Name: "Root", Department: "IT", Password: "p"})
	var verr engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected bootstrap refusal, got %v", err)
	}
}

func TestRankings(t *testing.T) {
	env := newTestEnv(t)
	env.createTaskX(t)
	if _, err := env.Engine.UpdateStatus(env.Ctx, manager, "TSK-X", "APPROVED"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Rankings(env.Ctx, employee); !errors.As(err, new(auth.ForbiddenError)) {
		t.Fatalf("employee must not view reports, got %v", err)
	}

	r, err := env.Engine.Rankings(env.Ctx, cfo)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Employees) != 3 || r.Employees[0].UserID != "EMP001" || r.Employees[0].Rank != 1 {
		t.Fatalf("unexpected employee ranking %+v", r.Employees)
	}
	if len(r.Managers) != 2 || r.Managers[0].UserID != "MGR001" {
		t.Fatalf("unexpected manager ranking %+v", r.Managers)
	}

	r, err = env.Engine.Rankings(env.Ctx, manager2)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Employees) != 1 || r.Employees[0].UserID != "EMP004" || r.Employees[0].Score != 0 {
		t.Fatalf("manager sees own reports only: %+v", r.Employees)
	}
	if len(r.Managers) != 1 || r.Managers[0].UserID != "MGR002" {
		t.Fatalf("manager sees own entry only: %+v", r.Managers)
	}
}

func TestStatusCounts(t *testing.T) {
	env := newTestEnv(t)
	env.createTaskX(t)
	if _, err := env.Engine.CreateTask(env.Ctx, manager2, engine.TaskDraft{Title: "Pipeline review", EmployeeID: "EMP004", Severity: "Low"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateStatus(env.Ctx, manager, "TSK-X", "Completed"); err != nil {
		t.Fatal(err)
	}

	all, err := env.Engine.StatusCounts(env.Ctx, cfo)
	if err != nil {
		t.Fatal(err)
	}
	if all["APPROVED"] != 1 || all["NEW"] != 1 {
		t.Fatalf("unexpected org counts %v", all)
	}
	own, err := env.Engine.StatusCounts(env.Ctx, employee)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 || own["APPROVED"] != 1 {
		t.Fatalf("employee counts must cover visible tasks only, got %v", own)
	}

	// A row imported by an older tool keeps the legacy spelling.
	legacy := domain.Task{ID: "OLD-1", Title: "Old close", EmployeeID: "EMP001", ManagerID: ptr("MGR001"), Department: "Engineering", Severity: domain.SeverityLow, Status: domain.StatusLegacyCompleted}
	if err := env.Engine.Repo.InsertTask(env.Ctx, nil, legacy); err != nil {
		t.Fatal(err)
	}
	for _, p := range []domain.Principal{cfo, manager, employee} {
		counts, err := env.Engine.StatusCounts(env.Ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		if counts["APPROVED"] != 2 || counts["Completed"] != 0 {
			t.Fatalf("%s: legacy spelling must count as APPROVED, got %v", p.Role, counts)
		}
	}
}
