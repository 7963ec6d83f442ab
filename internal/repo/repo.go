package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns tx when set, otherwise the pool.
func (r Repo) conn(tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return r.DB
}

type scanner interface {
	Scan(dest ...any) error
}

const taskColumns = `id,title,description,employee_id,manager_id,assigned_by,department,severity,status,rework_count,assigned_date,due_date,completed_date`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var description, managerID, assignedBy, assignedDate, dueDate, completedDate sql.NullString
	var severity, status string
	err := s.Scan(&t.ID, &t.Title, &description, &t.EmployeeID, &managerID, &assignedBy, &t.Department,
		&severity, &status, &t.ReworkCount, &assignedDate, &dueDate, &completedDate)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Severity = domain.Severity(severity)
	t.Status = domain.Status(status)
	if description.Valid {
		t.Description = description.String
	}
	t.ManagerID = stringPtr(managerID)
	t.AssignedBy = stringPtr(assignedBy)
	t.AssignedDate = stringPtr(assignedDate)
	t.DueDate = stringPtr(dueDate)
	t.CompletedDate = stringPtr(completedDate)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.EmployeeID, nullableStringPtr(t.ManagerID), nullableStringPtr(t.AssignedBy),
		t.Department, string(t.Severity), string(t.Status), t.ReworkCount,
		nullableStringPtr(t.AssignedDate), nullableStringPtr(t.DueDate), nullableStringPtr(t.CompletedDate))
	return err
}

// UpdateTask writes every mutable column of t.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, employee_id=?, manager_id=?, assigned_by=?, department=?, severity=?, status=?, rework_count=?, assigned_date=?, due_date=?, completed_date=? WHERE id=?`,
		t.Title, nullable(t.Description), t.EmployeeID, nullableStringPtr(t.ManagerID), nullableStringPtr(t.AssignedBy),
		t.Department, string(t.Severity), string(t.Status), t.ReworkCount,
		nullableStringPtr(t.AssignedDate), nullableStringPtr(t.DueDate), nullableStringPtr(t.CompletedDate), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(r.conn(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) TaskExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id=? LIMIT 1`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// TaskFilters narrows ListTasks. Zero value lists every task.
type TaskFilters struct {
	EmployeeID string
}

// ListTasks returns tasks ordered by due date ascending, undated last.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.EmployeeID != "" {
		clauses = append(clauses, "employee_id=?")
		args = append(args, f.EmployeeID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY due_date IS NULL, due_date ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
