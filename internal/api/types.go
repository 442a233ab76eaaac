package api

import "time"

// CreateRequestInput is a research request as submitted by a client.
type CreateRequestInput struct {
	ProjectID   string `json:"project_id"`
	RequestID   string `json:"request_id"`
	Query       string `json:"query"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// CreateRequestResponse acknowledges an accepted request.
type CreateRequestResponse struct {
	ProjectID string `json:"project_id"`
	RequestID string `json:"request_id"`
	TenantKey string `json:"tenant_key"`
	StageKey  string `json:"stage_key"`
	Status    string `json:"status"`
}

// StageStatus is the rollup view of one stage for one request.
type StageStatus struct {
	Stage        string `json:"stage"`
	Status       string `json:"status,omitempty"`
	Items        int    `json:"items"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// StatusResponse is the aggregate view of one request.
type StatusResponse struct {
	ProjectID    string        `json:"project_id"`
	RequestID    string        `json:"request_id"`
	Overall      string        `json:"overall"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Stages       []StageStatus `json:"stages"`
}

// ResultEntry is one completed analysis.
type ResultEntry struct {
	Stage        string `json:"stage"`
	AnalysisType string `json:"analysis_type"`
	Query        string `json:"query"`
	Content      string `json:"content"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// ResultsResponse carries the retrievable analyses for one request.
type ResultsResponse struct {
	ProjectID string        `json:"project_id"`
	RequestID string        `json:"request_id"`
	Overall   string        `json:"overall"`
	Results   []ResultEntry `json:"results"`
}

// ItemView is the transport shape of one work item.
type ItemView struct {
	Stage        string    `json:"stage"`
	TenantKey    string    `json:"tenant_key"`
	StageKey     string    `json:"stage_key"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ItemListResponse carries item views for one request.
type ItemListResponse struct {
	Items []ItemView `json:"items"`
}

// HealthResponse reports daemon and store health plus queue depth per stage.
type HealthResponse struct {
	Status string                    `json:"status"`
	Stages map[string]map[string]int `json:"stages,omitempty"`
}

// ErrorResponse is the transport shape of a failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
