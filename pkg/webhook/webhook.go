// Package webhook posts ingestion run summaries to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// Headers set on every delivery. The run id lets receivers drop repeats of
// the same run.
const (
	HeaderRunID = "X-Cutlog-Run-Id"
	HeaderEvent = "X-Cutlog-Event"
)

// maxResponseBody caps how much of a receiver's reply is kept.
const maxResponseBody = 64 * 1024

// Client posts run payloads to webhook endpoints.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a webhook client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		userAgent:  "cutlog-webhook",
	}
}

// SendOptions configures one delivery.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // DefaultTimeout if zero
}

// Response is the result of one delivery.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the receiver answered 2xx.
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts p as JSON. Failures are reported in the Response, never returned.
func (c *Client) Send(ctx context.Context, p *Payload, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	fail := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fail(fmt.Errorf("encoding payload: %w", err))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderEvent, p.Event)
	if p.RunID != "" {
		req.Header.Set(HeaderRunID, p.RunID)
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("posting to %s: %w", opts.URL, err))
	}
	defer httpResp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(reply)
	if err != nil {
		return fail(fmt.Errorf("reading reply: %w", err))
	}
	if resp.StatusCode >= 300 {
		return fail(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
	resp.Duration = time.Since(start)
	return resp
}
