package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/engine"
)

func openTestApp(t *testing.T) *App {
	t.Helper()
	a, err := Open(context.Background(), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	a.Engine.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { a.Close() })
	return a
}

func TestImportDemoSeed(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()
	seed := DemoSeed()
	res, err := ImportSeed(ctx, a.Engine, seed)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Users != len(seed.Users) || res.Tasks != len(seed.Tasks) {
		t.Fatalf("unexpected result %+v", res)
	}
	task, err := a.Engine.Repo.GetTask(ctx, nil, "TSK-108")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != domain.StatusApproved {
		t.Fatalf("legacy status must be stored as APPROVED, got %s", task.Status)
	}
	if _, err := a.Engine.Authenticate(ctx, "mgr001", "password123"); err != nil {
		t.Fatalf("seeded password must verify: %v", err)
	}
	if _, err := ImportSeed(ctx, a.Engine, seed); !errors.As(err, new(engine.ConflictError)) {
		t.Fatalf("second import must conflict, got %v", err)
	}
}

func TestImportSeedRejectsBrokenHierarchy(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()
	seed, err := ParseSeed([]byte(`
users:
  - {id: A, name: A, role: Manager, department: D, manager_id: B, password: p}
  - {id: B, name: B, role: Manager, department: D, manager_id: A, password: p}
`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ImportSeed(ctx, a.Engine, seed); !errors.As(err, new(engine.ValidationError)) {
		t.Fatalf("expected cycle rejected, got %v", err)
	}
	users, err := a.Engine.ListUsers(ctx)
	if err != nil || len(users) != 0 {
		t.Fatalf("nothing may be written: %d %v", len(users), err)
	}
}

func TestResolvePrincipal(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()
	if _, err := a.Engine.Bootstrap(ctx, engine.UserDraft{ID: "ROOT", Name: "Root", Department: "IT", Password: "p"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	p, err := ResolvePrincipal(ctx, a.Engine, "root")
	if err != nil || p.ID != "ROOT" || p.Role != domain.RoleAdmin {
		t.Fatalf("unexpected principal %+v %v", p, err)
	}
	if _, err := ResolvePrincipal(ctx, a.Engine, ""); err == nil {
		t.Fatalf("expected error without actor")
	}
	if _, err := ResolvePrincipal(ctx, a.Engine, "ghost"); err == nil {
		t.Fatalf("expected error for unknown actor")
	}
}

func TestOpenHonorsDatabaseFile(t *testing.T) {
	ws := t.TempDir()
	cfg := strings.Replace(config.GenerateDefault("acme"), `file: ""`, `file: org.db`, 1)
	if err := os.WriteFile(config.Path(ws), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(context.Background(), ws, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	if a.Config.Org.Name != "acme" {
		t.Fatalf("config not loaded: %+v", a.Config.Org)
	}
	if _, err := os.Stat(filepath.Join(ws, "org.db")); err != nil {
		t.Fatalf("expected database in workspace root: %v", err)
	}
}
