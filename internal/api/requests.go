package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketpipe/internal/blob"
	"marketpipe/internal/queue"
	"marketpipe/internal/services"
	"marketpipe/internal/stages"
	"marketpipe/internal/workflow"
)

// RequestService implements the gateway operations over the item store, the
// workflow graph, and the blob store.
type RequestService struct {
	store      *queue.Store
	blobs      *blob.Store
	graph      *workflow.Graph
	maxRetries int
}

// NewRequestService constructs the gateway facade. maxRetries is the retry
// budget stamped onto root items; successors inherit it through fan-out.
func NewRequestService(store *queue.Store, blobs *blob.Store, graph *workflow.Graph, maxRetries int) *RequestService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RequestService{store: store, blobs: blobs, graph: graph, maxRetries: maxRetries}
}

// CreateRequest validates the submission and enqueues the request_acceptance
// item that starts the pipeline. Validation failures are rejected before any
// item is created.
func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (CreateRequestResponse, error) {
	var empty CreateRequestResponse
	input.ProjectID = strings.TrimSpace(input.ProjectID)
	input.RequestID = strings.TrimSpace(input.RequestID)
	input.Query = strings.TrimSpace(input.Query)
	if input.ProjectID == "" {
		return empty, services.Wrap(services.ErrValidation, "", "create request", "project_id is required", nil)
	}
	if input.RequestID == "" {
		return empty, services.Wrap(services.ErrValidation, "", "create request", "request_id is required", nil)
	}
	if input.Query == "" {
		return empty, services.Wrap(services.ErrValidation, "", "create request", "query is required", nil)
	}
	if strings.Contains(input.ProjectID, queue.KeySeparator) || strings.Contains(input.RequestID, queue.KeySeparator) {
		return empty, services.Wrap(services.ErrValidation, "", "create request", "project_id and request_id must not contain "+queue.KeySeparator, nil)
	}

	tenantKey := queue.NewTenantKey(input.ProjectID, input.RequestID)
	latest, err := workflow.LatestStatuses(ctx, s.store, s.graph, tenantKey)
	if err != nil {
		return empty, err
	}
	if len(latest) > 0 {
		return empty, services.Wrap(services.ErrValidation, "", "create request", fmt.Sprintf("request %s already exists", tenantKey), nil)
	}

	payload, err := queue.EncodePayload(stages.RequestPayload{
		ProjectID:   input.ProjectID,
		RequestID:   input.RequestID,
		Query:       input.Query,
		Description: strings.TrimSpace(input.Description),
	})
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "", "create request", "encode payload", err)
	}

	item := &queue.Item{
		TenantKey:   tenantKey,
		StageKey:    queue.NewStageKey(workflow.StageRequestAcceptance),
		Priority:    queue.ParsePriority(input.Priority),
		MaxRetries:  s.maxRetries,
		PayloadJSON: payload,
	}
	if err := s.store.Put(ctx, workflow.StageRequestAcceptance, item); err != nil {
		return empty, fmt.Errorf("enqueue request: %w", err)
	}

	return CreateRequestResponse{
		ProjectID: input.ProjectID,
		RequestID: input.RequestID,
		TenantKey: tenantKey,
		StageKey:  item.StageKey,
		Status:    string(item.Status),
	}, nil
}

// Status rolls the request's per-stage statuses up into the aggregate view.
func (s *RequestService) Status(ctx context.Context, projectID, requestID string) (StatusResponse, error) {
	var empty StatusResponse
	tenantKey := queue.NewTenantKey(projectID, requestID)

	response := StatusResponse{ProjectID: projectID, RequestID: requestID}
	latest := make(map[string]queue.Status)
	var lastError string
	var lastErrorAt time.Time

	for _, stage := range s.graph.Order() {
		items, err := s.store.ItemsByTenant(ctx, stage, tenantKey)
		if err != nil {
			return empty, fmt.Errorf("list %s items: %w", stage, err)
		}
		detail := StageStatus{Stage: stage, Items: len(items)}
		var newest *queue.Item
		for _, item := range items {
			if newest == nil || item.UpdatedAt.After(newest.UpdatedAt) {
				newest = item
			}
			if item.Status == queue.StatusFailed && item.ErrorMessage != "" && item.UpdatedAt.After(lastErrorAt) {
				lastError = item.ErrorMessage
				lastErrorAt = item.UpdatedAt
			}
		}
		if newest != nil {
			latest[stage] = newest.Status
			detail.Status = string(newest.Status)
			detail.ErrorMessage = newest.ErrorMessage
		}
		response.Stages = append(response.Stages, detail)
	}

	overall := workflow.Aggregate(s.graph, latest)
	if overall == workflow.OverallNotFound {
		return empty, queue.ErrNotFound
	}
	response.Overall = string(overall)
	if overall == workflow.OverallFailed {
		response.ErrorMessage = lastError
	}
	return response, nil
}

// Results returns the completed analyses for a request. Partially completed
// requests return whatever finished; nothing completed is not an error as
// long as the request exists.
func (s *RequestService) Results(ctx context.Context, projectID, requestID string) (ResultsResponse, error) {
	var empty ResultsResponse
	tenantKey := queue.NewTenantKey(projectID, requestID)

	latest, err := workflow.LatestStatuses(ctx, s.store, s.graph, tenantKey)
	if err != nil {
		return empty, err
	}
	overall := workflow.Aggregate(s.graph, latest)
	if overall == workflow.OverallNotFound {
		return empty, queue.ErrNotFound
	}

	response := ResultsResponse{
		ProjectID: projectID,
		RequestID: requestID,
		Overall:   string(overall),
		Results:   []ResultEntry{},
	}
	for _, stage := range s.graph.TerminalStages() {
		items, err := s.store.ItemsByTenant(ctx, stage, tenantKey)
		if err != nil {
			return empty, fmt.Errorf("list %s items: %w", stage, err)
		}
		for _, item := range items {
			if item.Status != queue.StatusCompleted {
				continue
			}
			var payload stages.AnalysisPayload
			if err := item.DecodePayload(&payload); err != nil || payload.ResultRef == "" {
				continue
			}
			var result stages.AnalysisResult
			if err := s.blobs.GetJSON(payload.ResultRef, &result); err != nil {
				if errors.Is(err, blob.ErrNotFound) {
					continue
				}
				return empty, fmt.Errorf("load result blob: %w", err)
			}
			response.Results = append(response.Results, ResultEntry{
				Stage:        stage,
				AnalysisType: result.AnalysisType,
				Query:        result.Query,
				Content:      result.Content,
				CompletedAt:  item.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	return response, nil
}

// ListItems returns the request's items, optionally filtered by stage and
// status.
func (s *RequestService) ListItems(ctx context.Context, projectID, requestID, stageFilter, statusFilter string) (ItemListResponse, error) {
	var empty ItemListResponse
	tenantKey := queue.NewTenantKey(projectID, requestID)

	stageFilter = strings.TrimSpace(stageFilter)
	if stageFilter != "" && !s.graph.Contains(stageFilter) {
		return empty, services.Wrap(services.ErrValidation, "", "list items", fmt.Sprintf("unknown stage %q", stageFilter), nil)
	}
	var statusWant queue.Status
	if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
		parsed, ok := queue.ParseStatus(trimmed)
		if !ok {
			return empty, services.Wrap(services.ErrValidation, "", "list items", fmt.Sprintf("unknown status %q", trimmed), nil)
		}
		statusWant = parsed
	}

	response := ItemListResponse{Items: []ItemView{}}
	for _, stage := range s.graph.Order() {
		if stageFilter != "" && stage != stageFilter {
			continue
		}
		items, err := s.store.ItemsByTenant(ctx, stage, tenantKey)
		if err != nil {
			return empty, fmt.Errorf("list %s items: %w", stage, err)
		}
		for _, item := range items {
			if statusWant != "" && item.Status != statusWant {
				continue
			}
			response.Items = append(response.Items, ItemView{
				Stage:        stage,
				TenantKey:    item.TenantKey,
				StageKey:     item.StageKey,
				Status:       string(item.Status),
				Priority:     string(item.Priority),
				RetryCount:   item.RetryCount,
				MaxRetries:   item.MaxRetries,
				ErrorMessage: item.ErrorMessage,
				CreatedAt:    item.CreatedAt,
				UpdatedAt:    item.UpdatedAt,
			})
		}
	}
	return response, nil
}

// Cancel transitions all live items of the request to cancelled.
func (s *RequestService) Cancel(ctx context.Context, projectID, requestID string) error {
	tenantKey := queue.NewTenantKey(projectID, requestID)
	return workflow.Cancel(ctx, s.store, s.graph, tenantKey)
}

// Health reports store connectivity and per-stage queue depth.
func (s *RequestService) Health(ctx context.Context) (HealthResponse, error) {
	if err := s.store.Ping(ctx); err != nil {
		return HealthResponse{Status: "unhealthy"}, err
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return HealthResponse{Status: "unhealthy"}, err
	}
	out := make(map[string]map[string]int, len(stats))
	for stage, counts := range stats {
		byStatus := make(map[string]int, len(counts))
		for status, count := range counts {
			byStatus[string(status)] = count
		}
		out[stage] = byStatus
	}
	return HealthResponse{Status: "ok", Stages: out}, nil
}
