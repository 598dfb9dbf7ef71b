// Package agent is the worker side of the job protocol. A Worker polls the
// coordinator for jobs, renders order batches through an external command,
// scans template folders, and reports the outcome back.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/autodesign-coordinator/internal/jobs"
)

// StatusError is a non-2xx answer from the coordinator.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coordinator returned %d: %s", e.Code, e.Message)
}

// Client talks to the coordinator's job endpoints.
type Client struct {
	BaseURL string
	Token   string
	AgentID string
	HTTP    *http.Client
}

// NewClient returns a client for the API rooted at baseURL
// (e.g. "http://coordinator:8080/api/v1").
func NewClient(baseURL, token, agentID string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		AgentID: agentID,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Jobs fetches the current job catalog.
func (c *Client) Jobs(ctx context.Context) ([]jobs.Descriptor, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs", nil)
	if err != nil {
		return nil, err
	}
	var out jobs.List
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Report delivers a job outcome. idemKey is sent as Idempotency-Key so a
// retried delivery replays instead of applying twice.
func (c *Client) Report(ctx context.Context, r jobs.ReportRequest, idemKey string) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/jobs/report", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if c.AgentID != "" {
		req.Header.Set("X-Agent-ID", c.AgentID)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var env struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			msg = env.Message
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
