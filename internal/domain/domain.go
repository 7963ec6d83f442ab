package domain

import (
	"strings"
	"time"
)

// Role is the closed set of organization roles.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleCFO      Role = "CFO"
	RoleManager  Role = "Manager"
	RoleEmployee Role = "Employee"
)

// ParseRole returns the role matching s exactly. Unknown values report false.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleAdmin, RoleCFO, RoleManager, RoleEmployee:
		return r, true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

func ParseSeverity(s string) (Severity, bool) {
	switch v := Severity(strings.TrimSpace(s)); v {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return v, true
	}
	return "", false
}

type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusRework     Status = "REWORK"
	StatusApproved   Status = "APPROVED"
	StatusCancelled  Status = "CANCELLED"

	// StatusLegacyCompleted is the historical spelling of APPROVED found in
	// imported data. It is accepted on input and stored as APPROVED.
	StatusLegacyCompleted Status = "Completed"
)

// ParseStatus canonicalizes s. The legacy completion spelling maps to APPROVED
// only when acceptLegacy is set.
func ParseStatus(s string, acceptLegacy bool) (Status, bool) {
	switch v := Status(strings.TrimSpace(s)); v {
	case StatusNew, StatusInProgress, StatusSubmitted, StatusRework, StatusApproved, StatusCancelled:
		return v, true
	case StatusLegacyCompleted:
		if acceptLegacy {
			return StatusApproved, true
		}
	}
	return "", false
}

// Completed reports whether s signals a finished task.
func (s Status) Completed() bool {
	return s == StatusApproved || s == StatusLegacyCompleted
}

func (s Status) Terminal() bool {
	return s.Completed() || s == StatusCancelled
}

// DateLayout is the calendar date format used for task dates.
const DateLayout = time.DateOnly

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

type User struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         Role    `json:"role" enum:"Admin,CFO,Manager,Employee"`
	Department   string  `json:"department"`
	ManagerID    *string `json:"manager_id,omitempty"`
	Active       bool    `json:"active"`
	PasswordHash string  `json:"-"`
}

type Task struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	EmployeeID    string   `json:"employee_id"`
	ManagerID     *string  `json:"manager_id,omitempty"`
	AssignedBy    *string  `json:"assigned_by,omitempty"`
	Department    string   `json:"department"`
	Severity      Severity `json:"severity" enum:"High,Medium,Low"`
	Status        Status   `json:"status" enum:"NEW,IN_PROGRESS,SUBMITTED,REWORK,APPROVED,CANCELLED"`
	ReworkCount   int      `json:"rework_count"`
	AssignedDate  *string  `json:"assigned_date,omitempty" format:"date"`
	DueDate       *string  `json:"due_date,omitempty" format:"date"`
	CompletedDate *string  `json:"completed_date,omitempty" format:"date"`
}

// Principal is the authenticated actor a request runs for.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
