package server

import (
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/scoring"
)

// Request payloads

type LoginRequest struct {
	ID       string `json:"id" minLength:"1" example:"EMP001"`
	Password string `json:"password" minLength:"1"`
}

type CreateTaskRequest struct {
	ID           *string `json:"id,omitempty" example:"TSK-101"`
	Title        string  `json:"title" minLength:"1"`
	Description  *string `json:"description,omitempty"`
	EmployeeID   string  `json:"employee_id" minLength:"1"`
	Department   *string `json:"department,omitempty"`
	Severity     string  `json:"severity" enum:"High,Medium,Low"`
	AssignedDate *string `json:"assigned_date,omitempty" format:"date"`
	DueDate      *string `json:"due_date,omitempty" format:"date"`
	ManagerID    *string `json:"manager_id,omitempty"`
	AssignedBy   *string `json:"assigned_by,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" minLength:"1" example:"SUBMITTED"`
}

type ReassignRequest struct {
	NewEmployeeID string  `json:"new_employee_id" minLength:"1"`
	NewDueDate    *string `json:"new_due_date,omitempty" format:"date"`
	Reason        *string `json:"reason,omitempty"`
}

type CreateUserRequest struct {
	ID         string  `json:"id" minLength:"1"`
	Name       string  `json:"name" minLength:"1"`
	Role       string  `json:"role" enum:"Admin,CFO,Manager,Employee"`
	Department string  `json:"department"`
	ManagerID  *string `json:"manager_id,omitempty"`
	Password   string  `json:"password" minLength:"1"`
	Active     *bool   `json:"active,omitempty"`
}

type SetUserStatusRequest struct {
	Active bool `json:"active"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" minLength:"1"`
}

type CreateAPIKeyRequest struct {
	UserID *string `json:"user_id,omitempty"`
	Name   *string `json:"name,omitempty"`
}

// Responses

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type" example:"bearer"`
	ExpiresAt   string      `json:"expires_at" format:"date-time"`
	User        domain.User `json:"user"`
}

type MeResponse struct {
	ID     string      `json:"id"`
	Role   domain.Role `json:"role"`
	Source string      `json:"source"`
	User   domain.User `json:"user"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Key       string `json:"key,omitempty"`
}

type RankingsResponse struct {
	Employees []scoring.Entry `json:"employees"`
	Managers  []scoring.Entry `json:"managers"`
}

// Mappers

func (r CreateTaskRequest) draft() engine.TaskDraft {
	return engine.TaskDraft{
		ID:           strOrEmpty(r.ID),
		Title:        r.Title,
		Description:  strOrEmpty(r.Description),
		EmployeeID:   r.EmployeeID,
		Department:   strOrEmpty(r.Department),
		Severity:     r.Severity,
		AssignedDate: r.AssignedDate,
		DueDate:      r.DueDate,
		ManagerID:    r.ManagerID,
		AssignedBy:   r.AssignedBy,
	}
}

func (r CreateUserRequest) draft() engine.UserDraft {
	return engine.UserDraft{
		ID:         r.ID,
		Name:       r.Name,
		Role:       r.Role,
		Department: r.Department,
		ManagerID:  r.ManagerID,
		Password:   r.Password,
		Active:     r.Active,
	}
}

func apiKeyResponse(k domain.APIKey, plain string) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, UserID: k.UserID, Name: k.Name, CreatedAt: k.CreatedAt, Key: plain}
}

func rankingsResponse(r engine.Rankings) RankingsResponse {
	return RankingsResponse{Employees: nonNilSlice(r.Employees), Managers: nonNilSlice(r.Managers)}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
