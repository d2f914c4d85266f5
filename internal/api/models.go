package api

import (
	"encoding/json"
	"io"
	"time"

	"testai/internal/session"
)

// ID is a resource identifier. The service sends numbers for some
// resources and strings for others; both decode to the same text.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	return (*session.UserID)(id).UnmarshalJSON(data)
}

func (id ID) String() string { return string(id) }

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// AuthResponse is returned by both login and registration.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type,omitempty"`
	User        session.User `json:"user"`
}

type Project struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProjectUpdate changes only the fields that are set.
type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Test is a stored test case. Steps are kept as the service sent them.
type Test struct {
	ID          ID              `json:"id"`
	ProjectID   ID              `json:"project_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Script      string          `json:"script,omitempty"`
	Steps       json.RawMessage `json:"steps,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

type TestInput struct {
	ProjectID   string          `json:"project_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Script      string          `json:"script,omitempty"`
	Steps       json.RawMessage `json:"steps,omitempty"`
}

type Execution struct {
	ID         ID              `json:"id"`
	TestID     ID              `json:"test_id"`
	Status     string          `json:"status"`
	DurationMs float64         `json:"duration_ms,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
}

// Passed and Failed mirror the status values the service reports.
func (e Execution) Passed() bool { return e.Status == "passed" }
func (e Execution) Failed() bool { return e.Status == "failed" }

// TestUpdate changes only the fields that are set.
type TestUpdate struct {
	ProjectID   *string         `json:"project_id,omitempty"`
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Script      *string         `json:"script,omitempty"`
	Steps       json.RawMessage `json:"steps,omitempty"`
}

type ExecutionInput struct {
	TestID string `json:"test_id"`
}

type DashboardStats struct {
	TotalProjects    int         `json:"total_projects"`
	TotalTests       int         `json:"total_tests"`
	TotalExecutions  int         `json:"total_executions"`
	PassRate         float64     `json:"pass_rate"`
	RecentExecutions []Execution `json:"recent_executions"`
}

// Document is a file sent for test generation.
type Document struct {
	Filename    string
	ContentType string
	Content     io.Reader
}
