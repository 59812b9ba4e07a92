// Package rfid forwards card scans from a serial reader to the time
// tracking API.
package rfid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Scanner endpoints
const (
	StartPath = "/time/start_by_rfid"
	StopPath  = "/time/stop_by_rfid"
)

// Result is the decoded answer of a scanner endpoint
type Result struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`  // "ok" on success
	Message    string `json:"message"` // Set on success
	Error      string `json:"error"`   // Set on failure
}

// OK reports whether the server accepted the scan
func (r *Result) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Client posts tags to the server
type Client struct {
	server string
	apiKey string
	http   *http.Client
}

// NewClient creates a Client with a 2 second timeout
func NewClient(server, apiKey string) *Client {
	return &Client{
		server: strings.TrimRight(server, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 2 * time.Second},
	}
}

// Post sends tag to path. A non-2xx answer is returned as a Result, not an error.
func (c *Client) Post(ctx context.Context, path, tag string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"rfid": tag})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	res := &Result{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		// Proxies may answer with HTML; keep the status code either way
		_ = json.Unmarshal(raw, res)
	}
	return res, nil
}
