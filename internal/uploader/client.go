// Package uploader ships captured artifacts to the remote collector and
// retries failed attempts with exponential backoff.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Client performs a single multipart artifact upload. The endpoint can be
// swapped at runtime while uploads are in flight.
type Client struct {
	mu         sync.Mutex
	endpoint   string
	fieldName  string
	httpClient *http.Client
}

// NewClient builds an upload client for the given collector endpoint. The
// artifact file is submitted under fieldName in a multipart body.
func NewClient(endpoint, fieldName, proxyURL string) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" && proxyURL != "false" {
		if proxyParsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyParsed)
		}
	}

	return &Client{
		endpoint:  endpoint,
		fieldName: fieldName,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
	}
}

// SetEndpoint repoints the client at a new collector endpoint. In-flight
// uploads keep the endpoint they started with.
func (c *Client) SetEndpoint(endpoint string) {
	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
}

func (c *Client) currentEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// UploadResult is the collector's acknowledgement of a stored artifact.
type UploadResult struct {
	ID   string `json:"id"`
	Size int64  `json:"size"`
}

// RateLimitError reports an HTTP 429 response. RetryAfter is zero when the
// server sent no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Upload submits the artifact at path. Any non-2xx status or transport error
// is retryable; 429 is returned as *RateLimitError so the caller can honor
// the server's hint.
func (c *Client) Upload(ctx context.Context, path string) (*UploadResult, error) {
	endpoint := c.currentEndpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("no upload endpoint configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(c.fieldName, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result UploadResult
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("parsing upload response: %w", err)
		}
		return &result, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}

	default:
		return nil, fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
}

// parseRetryAfter handles both forms of the Retry-After header: a delay in
// seconds, or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
