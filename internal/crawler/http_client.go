package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"time"
)

const defaultMaxBodyBytes = 10 * 1024 * 1024

// HTTPClient fetches pages with plain HTTP GET requests
type HTTPClient struct {
	client        *http.Client
	userAgent     string
	customHeaders map[string]string
	maxBodyBytes  int64
}

// NewHTTPClient creates a new HTTP fetcher
func NewHTTPClient(userAgent string, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:        client,
		userAgent:     userAgent,
		customHeaders: make(map[string]string),
		maxBodyBytes:  defaultMaxBodyBytes,
	}
}

// SetCustomHeaders sets extra request headers
func (h *HTTPClient) SetCustomHeaders(headers map[string]string) {
	for k, v := range headers {
		h.customHeaders[k] = v
	}
}

// SetMaxBodyBytes caps the size of a response body
func (h *HTTPClient) SetMaxBodyBytes(n int64) {
	if n > 0 {
		h.maxBodyBytes = n
	}
}

// Fetch performs a GET request and returns the body of an HTML response.
// HTTP 429 and 5xx responses and network errors are returned as
// *TransientError, other 4xx as *StatusError. Non-HTML responses are
// returned as an empty page.
func (h *HTTPClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for name, value := range h.customHeaders {
		req.Header.Set(name, value)
	}

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &TransientError{
			URL:        url,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	case resp.StatusCode >= 400:
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodyBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > h.maxBodyBytes {
		return nil, fmt.Errorf("response body of %s exceeds %d bytes", url, h.maxBodyBytes)
	}

	var ttfb time.Duration
	if !firstByte.IsZero() {
		ttfb = firstByte.Sub(start)
	}
	slog.Debug("Fetched page", "url", url, "status", resp.StatusCode, "bytes", len(body), "ttfb", ttfb, "download_time", time.Since(start))

	if !isHTML(resp.Header.Get("Content-Type")) {
		slog.Debug("Skipping non-HTML content", "url", url, "content_type", resp.Header.Get("Content-Type"))
		return nil, nil
	}
	return body, nil
}

// Close releases idle connections
func (h *HTTPClient) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// isHTML treats a missing Content-Type as HTML
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

var _ Fetcher = (*HTTPClient)(nil)
