package main

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

	"marketpipe/internal/api"
)

// apiClient talks to the daemon's HTTP gateway.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(addr string) *apiClient {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &apiClient{
		baseURL:    strings.TrimRight(addr, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) createRequest(ctx context.Context, input api.CreateRequestInput) (api.CreateRequestResponse, error) {
	var out api.CreateRequestResponse
	err := c.do(ctx, http.MethodPost, "/api/requests", input, &out)
	return out, err
}

func (c *apiClient) status(ctx context.Context, project, request string) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.do(ctx, http.MethodGet, requestPath(project, request, "status"), nil, &out)
	return out, err
}

func (c *apiClient) results(ctx context.Context, project, request string) (api.ResultsResponse, error) {
	var out api.ResultsResponse
	err := c.do(ctx, http.MethodGet, requestPath(project, request, "results"), nil, &out)
	return out, err
}

func (c *apiClient) items(ctx context.Context, project, request, stage, status string) (api.ItemListResponse, error) {
	path := requestPath(project, request, "items")
	query := url.Values{}
	if stage != "" {
		query.Set("stage", stage)
	}
	if status != "" {
		query.Set("status", status)
	}
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out api.ItemListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *apiClient) cancel(ctx context.Context, project, request string) error {
	return c.do(ctx, http.MethodPost, requestPath(project, request, "cancel"), nil, nil)
}

func (c *apiClient) health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func requestPath(project, request, suffix string) string {
	return "/api/requests/" + url.PathEscape(project) + "/" + url.PathEscape(request) + "/" + suffix
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr api.ErrorResponse
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
