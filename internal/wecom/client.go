// Package wecom sends text messages to WeCom (企业微信) group robot webhooks.
package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single webhook call when the client has no explicit timeout.
const DefaultTimeout = 10 * time.Second

// Client posts messages to group robot webhooks. A zero Client is usable.
type Client struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{Timeout: timeout}
}

// Send posts msg to webhookURL once and parses the JSON reply.
//
// Errors are *TransportError when the request fails before a response arrives
// and *ResponseParseError when the reply body is not JSON. Non-zero errcode
// replies are returned as a Response, not an error.
func (c *Client) Send(ctx context.Context, webhookURL string, msg Message) (*Response, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	timeout := DefaultTimeout
	if c != nil && c.Timeout > 0 {
		timeout = c.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request for %s: invalid webhook url", RedactURL(webhookURL))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Length", strconv.Itoa(len(body)))
	httpReq.ContentLength = int64(len(body))

	client := http.DefaultClient
	if c != nil && c.HTTPClient != nil {
		client = c.HTTPClient
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		Trace(TraceEntry{
			Endpoint:    RedactURL(webhookURL),
			Method:      http.MethodPost,
			RequestBody: body,
			Error:       err.Error(),
			DurationMs:  time.Since(start).Milliseconds(),
		})
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		Trace(TraceEntry{
			Endpoint:    RedactURL(webhookURL),
			Method:      http.MethodPost,
			RequestBody: body,
			StatusCode:  resp.StatusCode,
			Error:       err.Error(),
			DurationMs:  duration.Milliseconds(),
		})
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	entry := TraceEntry{
		Endpoint:    RedactURL(webhookURL),
		Method:      http.MethodPost,
		RequestBody: body,
		StatusCode:  resp.StatusCode,
		DurationMs:  duration.Milliseconds(),
	}
	if json.Valid(respBody) {
		entry.Response = respBody
	} else {
		entry.Error = "invalid json response"
	}
	Trace(entry)

	parsed, err := parseResponse(respBody)
	if err != nil {
		return nil, &ResponseParseError{StatusCode: resp.StatusCode, Body: string(respBody), Err: err}
	}
	return parsed, nil
}

func parseResponse(body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("response is not valid json")
	}

	out := &Response{Raw: json.RawMessage(append([]byte(nil), trimmed...))}
	// Only objects carry errcode/errmsg; other JSON is passed through untouched.
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var status struct {
			ErrCode int    `json:"errcode"`
			ErrMsg  string `json:"errmsg"`
		}
		if err := json.Unmarshal(trimmed, &status); err == nil {
			out.ErrCode = status.ErrCode
			out.ErrMsg = status.ErrMsg
		}
	}
	return out, nil
}
