package tasklinesdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskline/internal/app"
	"taskline/internal/server"
)

const orgYAML = `
users:
  - {id: CFO001, name: David Hughes, role: CFO, department: Finance, password: pw}
  - {id: MGR001, name: John Smith, role: Manager, department: Engineering, manager_id: CFO001, password: pw}
  - {id: EMP001, name: Neo Anderson, role: Employee, department: Engineering, manager_id: MGR001, password: pw}
  - {id: EMP002, name: Trinity Matrix, role: Employee, department: Engineering, manager_id: MGR001, password: pw}
`

func newTestAPI(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	a, err := app.Open(ctx, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	a.Engine.PasswordCost = bcrypt.MinCost
	seed, err := app.ParseSeed([]byte(orgYAML))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.ImportSeed(ctx, a.Engine, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := server.New(server.Config{
		Engine:   a.Engine,
		BasePath: "/v1",
		Auth:     server.AuthConfig{JWTSecret: "sdk-secret", Issuer: "taskline"},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestClientTaskFlow(t *testing.T) {
	base := newTestAPI(t)
	ctx := context.Background()

	mgr := New(base)
	if _, err := mgr.Login(ctx, "mgr001", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	due := "2026-03-01"
	task, err := mgr.CreateTask(ctx, NewTask{ID: "TSK-X", Title: "Close books", EmployeeID: "EMP001", Severity: "High", DueDate: &due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != "NEW" || task.Department != "Engineering" || task.ManagerID == nil || *task.ManagerID != "MGR001" {
		t.Fatalf("unexpected task %+v", task)
	}

	emp := New(base)
	if _, err := emp.Login(ctx, "EMP001", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := emp.UpdateStatus(ctx, "TSK-X", "SUBMITTED"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := emp.CreateTask(ctx, NewTask{Title: "nope", EmployeeID: "EMP001", Severity: "Low"}); err == nil {
		t.Fatalf("employee create must fail")
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden || apiErr.Code != "forbidden" {
			t.Fatalf("expected forbidden api error, got %v", err)
		}
	}

	moved, err := mgr.ReassignTask(ctx, "TSK-X", "EMP002", nil, "load balancing")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if moved.EmployeeID != "EMP002" || moved.Status != "IN_PROGRESS" || moved.DueDate == nil || *moved.DueDate != due {
		t.Fatalf("unexpected reassigned task %+v", moved)
	}

	tasks, err := emp.ListTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("EMP001 should no longer see TSK-X, got %+v", tasks)
	}

	r, err := mgr.Rankings(ctx)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if len(r.Employees) != 2 || len(r.Managers) != 1 {
		t.Fatalf("unexpected rankings %+v", r)
	}
}

func TestClientLoginFailure(t *testing.T) {
	base := newTestAPI(t)
	c := New(base)
	_, err := c.Login(context.Background(), "EMP001", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if c.BearerToken != "" {
		t.Fatalf("failed login must not set a token")
	}
}
