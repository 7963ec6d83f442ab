package app

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"taskline/internal/directory"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/repo"
)

//go:embed demo_org.yml
var demoOrg []byte

// Seed is an organization snapshot: users with plaintext passwords and their
// tasks.
type Seed struct {
	Users []SeedUser `yaml:"users"`
	Tasks []SeedTask `yaml:"tasks"`
}

type SeedUser struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Role       string  `yaml:"role"`
	Department string  `yaml:"department"`
	ManagerID  *string `yaml:"manager_id"`
	Password   string  `yaml:"password"`
	Active     *bool   `yaml:"active"`
}

type SeedTask struct {
	ID            string  `yaml:"id"`
	Title         string  `yaml:"title"`
	Description   string  `yaml:"description"`
	EmployeeID    string  `yaml:"employee_id"`
	ManagerID     *string `yaml:"manager_id"`
	AssignedBy    *string `yaml:"assigned_by"`
	Department    string  `yaml:"department"`
	Severity      string  `yaml:"severity"`
	Status        string  `yaml:"status"`
	ReworkCount   int     `yaml:"rework_count"`
	AssignedDate  *string `yaml:"assigned_date"`
	DueDate       *string `yaml:"due_date"`
	CompletedDate *string `yaml:"completed_date"`
}

type SeedResult struct {
	Users int `json:"users"`
	Tasks int `json:"tasks"`
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("invalid seed yaml: %w", err)
	}
	return s, nil
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(data)
}

// DemoSeed returns the bundled demonstration organization.
func DemoSeed() Seed {
	s, err := ParseSeed(demoOrg)
	if err != nil {
		panic(err)
	}
	return s
}

// ImportSeed inserts every user and task of s in one transaction. Users are
// written managers first; the legacy completion status is stored as APPROVED.
func ImportSeed(ctx context.Context, eng engine.Engine, s Seed) (SeedResult, error) {
	users := make([]domain.User, 0, len(s.Users))
	for _, su := range s.Users {
		role, ok := domain.ParseRole(su.Role)
		if !ok {
			return SeedResult{}, engine.ValidationError{Field: "role", Message: fmt.Sprintf("user %s: unknown role %q", su.ID, su.Role)}
		}
		hash, err := eng.HashPassword(su.Password)
		if err != nil {
			return SeedResult{}, fmt.Errorf("user %s: %w", su.ID, err)
		}
		u := domain.User{
			ID:           strings.TrimSpace(su.ID),
			Name:         su.Name,
			Role:         role,
			Department:   su.Department,
			ManagerID:    su.ManagerID,
			Active:       su.Active == nil || *su.Active,
			PasswordHash: hash,
		}
		if u.ID == "" {
			return SeedResult{}, engine.ValidationError{Field: "id", Message: "user id is required"}
		}
		users = append(users, u)
	}
	idx, err := directory.NewIndex(users)
	if err != nil {
		return SeedResult{}, engine.ValidationError{Field: "users", Message: err.Error()}
	}

	tasks := make([]domain.Task, 0, len(s.Tasks))
	for _, st := range s.Tasks {
		t, err := seedTask(ctx, idx, st)
		if err != nil {
			return SeedResult{}, err
		}
		tasks = append(tasks, t)
	}

	ordered := managersFirst(idx)
	if len(ordered) != len(users) {
		return SeedResult{}, engine.ValidationError{Field: "users", Message: "manager references form a cycle"}
	}

	tx, err := eng.DB.BeginTx(ctx, nil)
	if err != nil {
		return SeedResult{}, err
	}
	defer tx.Rollback()
	dir := eng.Directory.WithTx(tx)
	for _, u := range ordered {
		if _, err := dir.LookupFold(ctx, u.ID); err == nil {
			return SeedResult{}, engine.ConflictError{Kind: "user", ID: u.ID}
		} else if !errors.Is(err, repo.ErrNotFound) {
			return SeedResult{}, err
		}
		if err := eng.Repo.InsertUser(ctx, tx, u); err != nil {
			return SeedResult{}, fmt.Errorf("insert user %s: %w", u.ID, err)
		}
	}
	for _, t := range tasks {
		exists, err := eng.Repo.TaskExists(ctx, tx, t.ID)
		if err != nil {
			return SeedResult{}, err
		}
		if exists {
			return SeedResult{}, engine.ConflictError{Kind: "task", ID: t.ID}
		}
		if err := eng.Repo.InsertTask(ctx, tx, t); err != nil {
			return SeedResult{}, fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return SeedResult{}, err
	}
	eng.Logger.InfoContext(ctx, "organization imported", "users", len(users), "tasks", len(tasks))
	return SeedResult{Users: len(users), Tasks: len(tasks)}, nil
}

func seedTask(ctx context.Context, idx *directory.Index, st SeedTask) (domain.Task, error) {
	if strings.TrimSpace(st.ID) == "" {
		return domain.Task{}, engine.ValidationError{Field: "id", Message: "task id is required"}
	}
	if _, err := idx.Resolve(ctx, st.EmployeeID); err != nil {
		return domain.Task{}, engine.NotFoundError{Kind: "user", ID: st.EmployeeID}
	}
	severity, ok := domain.ParseSeverity(st.Severity)
	if !ok {
		return domain.Task{}, engine.ValidationError{Field: "severity", Message: fmt.Sprintf("task %s: unknown severity %q", st.ID, st.Severity)}
	}
	status := domain.StatusNew
	if st.Status != "" {
		if status, ok = domain.ParseStatus(st.Status, true); !ok {
			return domain.Task{}, engine.ValidationError{Field: "status", Message: fmt.Sprintf("task %s: unknown status %q", st.ID, st.Status)}
		}
	}
	if st.ReworkCount < 0 {
		return domain.Task{}, engine.ValidationError{Field: "rework_count", Message: fmt.Sprintf("task %s: must not be negative", st.ID)}
	}
	for name, v := range map[string]*string{"assigned_date": st.AssignedDate, "due_date": st.DueDate, "completed_date": st.CompletedDate} {
		if v != nil && !domain.ValidDate(*v) {
			return domain.Task{}, engine.ValidationError{Field: name, Message: fmt.Sprintf("task %s: %q is not a YYYY-MM-DD date", st.ID, *v)}
		}
	}
	return domain.Task{
		ID:            st.ID,
		Title:         st.Title,
		Description:   st.Description,
		EmployeeID:    st.EmployeeID,
		ManagerID:     st.ManagerID,
		AssignedBy:    st.AssignedBy,
		Department:    st.Department,
		Severity:      severity,
		Status:        status,
		ReworkCount:   st.ReworkCount,
		AssignedDate:  st.AssignedDate,
		DueDate:       st.DueDate,
		CompletedDate: st.CompletedDate,
	}, nil
}

// managersFirst walks the org tree breadth first from its roots.
func managersFirst(idx *directory.Index) []domain.User {
	queue := idx.Roots()
	var out []domain.User
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		out = append(out, u)
		queue = append(queue, idx.Reports(u.ID)...)
	}
	return out
}
