// Package auth holds the role policy and the task visibility filter. Both are
// pure functions over a principal; storage is never consulted.
package auth

import (
	"fmt"

	"taskline/internal/domain"
)

// Actions checked by the policy.
const (
	ActionCreateTask   = "task.create"
	ActionReassignTask = "task.reassign"
	ActionManageUsers  = "user.manage"
	ActionViewReports  = "report.view"
)

// ForbiddenError indicates the principal's role may not perform Action.
type ForbiddenError struct {
	Action string
	Role   domain.Role
}

func (e ForbiddenError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("action %s not permitted", e.Action)
	}
	return fmt.Sprintf("role %s may not perform %s", e.Role, e.Action)
}

func deny(p domain.Principal, action string) error {
	return ForbiddenError{Action: action, Role: p.Role}
}

// CanCreateTask allows Manager, Admin and CFO.
func CanCreateTask(p domain.Principal) error {
	if isSupervisor(p.Role) {
		return nil
	}
	return deny(p, ActionCreateTask)
}

// CanReassignTask allows Manager, Admin and CFO.
func CanReassignTask(p domain.Principal) error {
	if isSupervisor(p.Role) {
		return nil
	}
	return deny(p, ActionReassignTask)
}

// CanManageUsers allows Admin and CFO.
func CanManageUsers(p domain.Principal) error {
	switch p.Role {
	case domain.RoleAdmin, domain.RoleCFO:
		return nil
	case domain.RoleManager, domain.RoleEmployee:
		return deny(p, ActionManageUsers)
	}
	return deny(p, ActionManageUsers)
}

// CanViewReports allows Manager, Admin and CFO.
func CanViewReports(p domain.Principal) error {
	if isSupervisor(p.Role) {
		return nil
	}
	return deny(p, ActionViewReports)
}

func isSupervisor(r domain.Role) bool {
	switch r {
	case domain.RoleManager, domain.RoleAdmin, domain.RoleCFO:
		return true
	case domain.RoleEmployee:
		return false
	}
	return false
}

// CanView reports whether p may read t.
func CanView(p domain.Principal, t domain.Task) bool {
	switch p.Role {
	case domain.RoleAdmin, domain.RoleCFO:
		return true
	case domain.RoleManager:
		return t.EmployeeID == p.ID || (t.ManagerID != nil && *t.ManagerID == p.ID)
	case domain.RoleEmployee:
		return t.EmployeeID == p.ID
	}
	return false
}

// VisibleTasks returns the tasks p may read, preserving input order.
func VisibleTasks(p domain.Principal, tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if CanView(p, t) {
			out = append(out, t)
		}
	}
	return out
}
