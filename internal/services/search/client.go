// Package search wraps the SERP provider used by the serp stage to turn a
// research query into candidate URLs.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"marketpipe/internal/config"
	"marketpipe/internal/services"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultMaxResults    = 10
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Client issues SERP queries with bounded retry.
type Client struct {
	cfg        config.Search
	httpClient *http.Client

	retryMaxAttempts int
	retryDelay       time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides the retry attempt count and fixed delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
		c.retryDelay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a SERP client from configuration.
func NewClient(cfg config.Search, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	client := &Client{
		cfg: config.Search{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxResults:     cfg.MaxResults,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryDelay:       defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://google.serper.dev/search"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type searchRequest struct {
	Query  string `json:"q"`
	Engine string `json:"engine,omitempty"`
	Num    int    `json:"num,omitempty"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	Error string `json:"error"`
}

// Search runs the query against one engine and returns up to the configured
// number of organic results.
func (c *Client) Search(ctx context.Context, query, engine string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "", "search", "query required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "search", "api key required", nil)
	}

	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		results, err := c.searchOnce(ctx, query, engine)
		if err == nil {
			return results, nil
		}
		if !retryable(err) || attempt == attempts || ctx.Err() != nil {
			return nil, services.Wrap(services.ErrExternalService, "", "search", "", err)
		}
		lastErr = err
		if sleepErr := c.sleep(ctx); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, services.Wrap(services.ErrExternalService, "", "search", fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

func (c *Client) searchOnce(ctx context.Context, query, engine string) ([]Result, error) {
	encoded, err := json.Marshal(searchRequest{Query: query, Engine: engine, Num: c.cfg.MaxResults})
	if err != nil {
		return nil, fmt.Errorf("search request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("search request: new request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("search request: decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("search request: api error: %s", decoded.Error)
	}

	results := make([]Result, 0, len(decoded.Organic))
	for _, hit := range decoded.Organic {
		link := strings.TrimSpace(hit.Link)
		if link == "" {
			continue
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(hit.Title),
			URL:     link,
			Snippet: strings.TrimSpace(hit.Snippet),
		})
		if len(results) >= c.cfg.MaxResults {
			break
		}
	}
	return results, nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("search request: http %d: %s", e.StatusCode, e.Body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) sleep(ctx context.Context) error {
	if c.retryDelay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(c.retryDelay)
		return ctx.Err()
	}
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
