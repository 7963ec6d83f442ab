package tasklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskline HTTP API client. Requests authenticate with
// BearerToken when set, otherwise with APIKey.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client for baseURL, which includes the API base path
// (for example http://127.0.0.1:8080/v1).
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type User struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Department string  `json:"department"`
	ManagerID  *string `json:"manager_id,omitempty"`
	Active     bool    `json:"active"`
}

type Task struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	EmployeeID    string  `json:"employee_id"`
	ManagerID     *string `json:"manager_id,omitempty"`
	AssignedBy    *string `json:"assigned_by,omitempty"`
	Department    string  `json:"department"`
	Severity      string  `json:"severity"`
	Status        string  `json:"status"`
	ReworkCount   int     `json:"rework_count"`
	AssignedDate  *string `json:"assigned_date,omitempty"`
	DueDate       *string `json:"due_date,omitempty"`
	CompletedDate *string `json:"completed_date,omitempty"`
}

// NewTask is the payload for CreateTask. Empty optional fields are filled in
// by the server.
type NewTask struct {
	ID           string  `json:"id,omitempty"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	EmployeeID   string  `json:"employee_id"`
	Department   string  `json:"department,omitempty"`
	Severity     string  `json:"severity"`
	AssignedDate *string `json:"assigned_date,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	ManagerID    *string `json:"manager_id,omitempty"`
}

type Login struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
	User        User   `json:"user"`
}

type RankingEntry struct {
	Rank       int     `json:"rank"`
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Department string  `json:"department"`
	Score      float64 `json:"score"`
	Tasks      int     `json:"tasks"`
	Completed  int     `json:"completed"`
}

type Rankings struct {
	Employees []RankingEntry `json:"employees"`
	Managers  []RankingEntry `json:"managers"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, id, password string) (Login, error) {
	var resp Login
	body := map[string]string{"id": id, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return Login{}, err
	}
	c.BearerToken = resp.AccessToken
	return resp, nil
}

// ListTasks returns the tasks visible to the caller, soonest due first.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp, err
}

// UpdateStatus moves a task to status.
func (c *Client) UpdateStatus(ctx context.Context, taskID, status string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/status", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]string{"status": status}, &resp)
	return resp, err
}

// ReassignTask moves a task to employeeID. dueDate and reason are optional.
func (c *Client) ReassignTask(ctx context.Context, taskID, employeeID string, dueDate *string, reason string) (Task, error) {
	body := map[string]any{"new_employee_id": employeeID}
	if dueDate != nil {
		body["new_due_date"] = *dueDate
	}
	if reason != "" {
		body["reason"] = reason
	}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/reassign", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

func (c *Client) Rankings(ctx context.Context) (Rankings, error) {
	var resp Rankings
	err := c.do(ctx, http.MethodGet, "reports/rankings", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
