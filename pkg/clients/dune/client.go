// Package dune is a minimal client for the Dune Analytics HTTP API covering
// the endpoints this tool needs: query execution with polling, result
// retrieval, and table upload.
package dune

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/logger"
)

const defaultBaseURL = "https://api.dune.com/api/v1"

// PerformanceTier selects the engine size an execution runs on.
type PerformanceTier string

const (
	TierMedium PerformanceTier = "medium"
	TierLarge  PerformanceTier = "large"
)

// Client talks to the Dune Analytics API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a Dune API client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: defaultMaxRetries,
		log:        logger.With(zap.String("component", "dune_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExecuteQuery starts an execution of queryID with the given parameter
// values and performance tier.
func (c *Client) ExecuteQuery(ctx context.Context, queryID int, params map[string]string, tier PerformanceTier) (*ExecuteResponse, error) {
	body := map[string]interface{}{"performance": string(tier)}
	if len(params) > 0 {
		body["query_parameters"] = params
	}
	var resp ExecuteResponse
	url := fmt.Sprintf("%s/query/%d/execute", c.baseURL, queryID)
	if err := c.do(ctx, http.MethodPost, url, "application/json", jsonBody(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecutionStatus fetches the current state of an execution.
func (c *Client) ExecutionStatus(ctx context.Context, executionID string) (*StatusResponse, error) {
	var resp StatusResponse
	url := fmt.Sprintf("%s/execution/%s/status", c.baseURL, executionID)
	if err := c.do(ctx, http.MethodGet, url, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecutionResults fetches the result of an execution.
func (c *Client) ExecutionResults(ctx context.Context, executionID string) (*ResultsResponse, error) {
	var resp ResultsResponse
	url := fmt.Sprintf("%s/execution/%s/results", c.baseURL, executionID)
	if err := c.do(ctx, http.MethodGet, url, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunQuery executes queryID and polls at pollFrequency until the execution
// reaches a terminal state, then returns its results. The poll loop is the
// only suspension point; ctx cancellation aborts it.
func (c *Client) RunQuery(ctx context.Context, queryID int, params map[string]string, tier PerformanceTier, pollFrequency time.Duration) (*ResultsResponse, error) {
	exec, err := c.ExecuteQuery(ctx, queryID, params, tier)
	if err != nil {
		return nil, err
	}
	c.log.Debug("execution started",
		zap.Int("query_id", queryID),
		zap.String("execution_id", exec.ExecutionID))

	if pollFrequency <= 0 {
		pollFrequency = time.Second
	}
	ticker := time.NewTicker(pollFrequency)
	defer ticker.Stop()

	state := exec.State
	for !IsTerminal(state) {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeExecution, "query polling cancelled")
		case <-ticker.C:
		}
		status, err := c.ExecutionStatus(ctx, exec.ExecutionID)
		if err != nil {
			return nil, err
		}
		state = status.State
		c.log.Debug("polled execution",
			zap.String("execution_id", exec.ExecutionID),
			zap.String("state", state))
	}

	if state != StateCompleted {
		return nil, errors.Newf(errors.ErrorTypeExecution,
			"execution %s finished in state %s", exec.ExecutionID, state)
	}
	return c.ExecutionResults(ctx, exec.ExecutionID)
}

// CreateTable creates (or re-creates) a table in the given namespace.
func (c *Client) CreateTable(ctx context.Context, req *CreateTableRequest) error {
	url := fmt.Sprintf("%s/table/create", c.baseURL)
	return c.do(ctx, http.MethodPost, url, "application/json", jsonBody(req), nil)
}

// InsertCSV uploads CSV data into namespace.table.
func (c *Client) InsertCSV(ctx context.Context, namespace, table string, csv []byte) (*InsertResponse, error) {
	var resp InsertResponse
	url := fmt.Sprintf("%s/table/%s/%s/insert", c.baseURL, namespace, table)
	if err := c.do(ctx, http.MethodPost, url, "text/csv", csv, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func jsonBody(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Request bodies are built from plain maps and structs; this cannot
		// fail for the shapes we pass.
		return nil
	}
	return data
}

// do sends one API request, retrying transient failures. Request bodies are
// byte slices so each attempt gets a fresh reader.
func (c *Client) do(ctx context.Context, method, url, contentType string, body []byte, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			c.log.Warn("retrying Dune API request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrorTypeConnection, "request cancelled during retry")
			case <-time.After(delay):
			}
		}
		retryable, err := c.once(ctx, method, url, contentType, body, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// once sends a single attempt and reports whether a failure is worth retrying:
// transport errors, 429 and 5xx are; everything else is terminal.
func (c *Client) once(ctx context.Context, method, url, contentType string, body []byte, out interface{}) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build request")
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, errors.Wrap(err, errors.ErrorTypeConnection, "request to Dune API failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read Dune API response")
	}
	if resp.StatusCode >= 400 {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retryable, errors.Newf(errors.ErrorTypeExecution,
			"Dune API returned %d: %s", resp.StatusCode, string(data)).
			WithDetail("url", url)
	}
	if out == nil {
		return false, nil
	}
	// UseNumber keeps bigint and uint256 cells exact; float64 would round
	// them.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeData, "failed to decode Dune API response")
	}
	return false, nil
}
