// Package engine applies the authorization and task lifecycle rules on top of
// the repository. Every mutation runs in one transaction and commits nothing
// when rejected.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskline/internal/config"
	"taskline/internal/directory"
	"taskline/internal/domain"
	"taskline/internal/engine/auth"
	"taskline/internal/events"
	"taskline/internal/repo"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Directory directory.Store
	Events    events.Writer
	Config    *config.Config
	Logger    *slog.Logger
	Now       func() time.Time

	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := repo.Repo{DB: db}
	return Engine{
		DB:        db,
		Repo:      r,
		Directory: directory.Store{Repo: r},
		Events:    events.Writer{Logger: logger},
		Config:    cfg,
		Logger:    logger,
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) today() string {
	return e.now().Format(domain.DateLayout)
}

func (e Engine) emit(ctx context.Context, evtType, kind, id string, p domain.Principal, payload events.EventPayload) {
	w := e.Events
	w.Now = e.now
	w.Append(ctx, evtType, kind, id, p.ID, payload)
}

// ListTasks returns the tasks p may see, ordered by due date with undated
// tasks last. An Employee's own tasks are selected in SQL.
func (e Engine) ListTasks(ctx context.Context, p domain.Principal) ([]domain.Task, error) {
	var f repo.TaskFilters
	if p.Role == domain.RoleEmployee {
		f.EmployeeID = p.ID
	}
	tasks, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return auth.VisibleTasks(p, tasks), nil
}

// TaskDraft holds the input for CreateTask. Empty optional fields take their
// defaults.
type TaskDraft struct {
	ID           string
	Title        string
	Description  string
	EmployeeID   string
	Department   string
	Severity     string
	AssignedDate *string
	DueDate      *string
	ManagerID    *string
	AssignedBy   *string
}

func (e Engine) CreateTask(ctx context.Context, p domain.Principal, d TaskDraft) (domain.Task, error) {
	if err := auth.CanCreateTask(p); err != nil {
		return domain.Task{}, err
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return domain.Task{}, ValidationError{Field: "title", Message: "is required"}
	}
	if strings.TrimSpace(d.EmployeeID) == "" {
		return domain.Task{}, ValidationError{Field: "employee_id", Message: "is required"}
	}
	severity, ok := domain.ParseSeverity(d.Severity)
	if !ok {
		return domain.Task{}, ValidationError{Field: "severity", Message: fmt.Sprintf("unknown severity %q", d.Severity)}
	}
	if err := validateDates(map[string]*string{"assigned_date": d.AssignedDate, "due_date": d.DueDate}); err != nil {
		return domain.Task{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	id := strings.TrimSpace(d.ID)
	if id != "" {
		exists, err := e.Repo.TaskExists(ctx, tx, id)
		if err != nil {
			return domain.Task{}, err
		}
		if exists {
			return domain.Task{}, ConflictError{Kind: "task", ID: id}
		}
	} else if id, err = e.newTaskID(ctx, tx); err != nil {
		return domain.Task{}, err
	}

	assignee, err := e.Directory.WithTx(tx).Resolve(ctx, d.EmployeeID)
	if err != nil {
		return domain.Task{}, notFound(err, "user", d.EmployeeID)
	}
	dept := strings.TrimSpace(d.Department)
	if dept == "" {
		dept = assignee.Department
	}
	t := domain.Task{
		ID:           id,
		Title:        title,
		Description:  d.Description,
		EmployeeID:   assignee.ID,
		ManagerID:    orPrincipal(d.ManagerID, p),
		AssignedBy:   orPrincipal(d.AssignedBy, p),
		Department:   dept,
		Severity:     severity,
		Status:       domain.StatusNew,
		AssignedDate: d.AssignedDate,
		DueDate:      d.DueDate,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	e.emit(ctx, "task.created", "task", t.ID, p, events.EventPayload{"employee_id": t.EmployeeID, "severity": string(t.Severity)})
	return t, nil
}

func (e Engine) newTaskID(ctx context.Context, tx *sql.Tx) (string, error) {
	for i := 0; i < 5; i++ {
		id := e.Config.Tasks.IDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		exists, err := e.Repo.TaskExists(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", errors.New("could not allocate a task id")
}

func orPrincipal(v *string, p domain.Principal) *string {
	if v != nil && strings.TrimSpace(*v) != "" {
		s := strings.TrimSpace(*v)
		return &s
	}
	id := p.ID
	return &id
}

func validateDates(fields map[string]*string) error {
	for name, v := range fields {
		if v != nil && !domain.ValidDate(*v) {
			return ValidationError{Field: name, Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", *v)}
		}
	}
	return nil
}

// UpdateStatus applies a status change. Any authenticated principal may
// request one; visibility is not checked here.
func (e Engine) UpdateStatus(ctx context.Context, p domain.Principal, taskID, status string) (domain.Task, error) {
	requested, ok := domain.ParseStatus(status, e.Config.Tasks.AcceptLegacyCompleted)
	if !ok {
		return domain.Task{}, ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTask(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, notFound(err, "task", taskID)
	}
	if err := ensureTaskTransition(t.Status, requested, e.Config.Tasks.StrictTransitions); err != nil {
		return domain.Task{}, err
	}
	from := t.Status
	t = ApplyStatus(t, requested, e.today())
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	e.emit(ctx, "task.status", "task", t.ID, p, events.EventPayload{"from": string(from), "to": string(t.Status), "rework_count": t.ReworkCount})
	return t, nil
}

// ReassignOptions holds the input for ReassignTask. Reason is only recorded
// in the emitted event.
type ReassignOptions struct {
	TaskID     string
	EmployeeID string
	DueDate    *string
	Reason     string
}

// ReassignTask moves a task to a new assignee. A submitted task goes back to
// IN_PROGRESS. manager_id is left as is.
func (e Engine) ReassignTask(ctx context.Context, p domain.Principal, opts ReassignOptions) (domain.Task, error) {
	if err := auth.CanReassignTask(p); err != nil {
		return domain.Task{}, err
	}
	if err := validateDates(map[string]*string{"new_due_date": opts.DueDate}); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTask(ctx, tx, opts.TaskID)
	if err != nil {
		return domain.Task{}, notFound(err, "task", opts.TaskID)
	}
	assignee, err := e.Directory.WithTx(tx).Resolve(ctx, opts.EmployeeID)
	if err != nil {
		return domain.Task{}, notFound(err, "user", opts.EmployeeID)
	}
	from := t.EmployeeID
	t.EmployeeID = assignee.ID
	assignedBy := p.ID
	t.AssignedBy = &assignedBy
	if opts.DueDate != nil {
		due := *opts.DueDate
		t.DueDate = &due
	}
	if t.Status == domain.StatusSubmitted {
		t.Status = domain.StatusInProgress
	}
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	payload := events.EventPayload{"from": from, "to": t.EmployeeID, "status": string(t.Status)}
	if r := strings.TrimSpace(opts.Reason); r != "" {
		payload["reason"] = r
	}
	e.emit(ctx, "task.reassigned", "task", t.ID, p, payload)
	return t, nil
}
