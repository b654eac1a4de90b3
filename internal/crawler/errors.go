package crawler

import (
	"errors"
	"fmt"
	"time"
)

// ErrFetchFailed marks a URL whose fetch did not produce a page, either
// because of a permanent error or because transient retries ran out.
var ErrFetchFailed = errors.New("fetch failed")

// Error types recorded in CrawlError.ErrorType
const (
	ErrorTypeTransientExhausted = "transient_exhausted"
	ErrorTypeFetchFailed        = "fetch_failed"
	ErrorTypeExtraction         = "extraction_error"
)

// TransientError is a fetch failure worth retrying: network errors,
// server errors and rate limiting.
type TransientError struct {
	URL        string
	StatusCode int           // 0 for network errors
	RetryAfter time.Duration // Server-requested wait, 0 if none
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch error for %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transient fetch error for %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// StatusError is a non-retryable HTTP status (4xx other than 429)
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// ExtractionError wraps a markup parsing failure. It is never propagated;
// the page is treated as having no links.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract links from %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// retryAfter returns the server-requested delay carried by err, if any
func retryAfter(err error) time.Duration {
	var transient *TransientError
	if errors.As(err, &transient) {
		return transient.RetryAfter
	}
	return 0
}

// errorType classifies a fetch error for CrawlError and metrics
func errorType(err error) string {
	if IsTransient(err) {
		return ErrorTypeTransientExhausted
	}
	var extraction *ExtractionError
	if errors.As(err, &extraction) {
		return ErrorTypeExtraction
	}
	return ErrorTypeFetchFailed
}
