package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/masahif/postcrawl/internal/metrics"
)

// DefaultPageProcessor fetches a page through a Fetcher, retrying transient
// failures, and extracts its links. It never returns an error: failures
// are reported in PageResult.Error.
type DefaultPageProcessor struct {
	extractor   LinkExtractor
	rateLimiter *RateLimiter
	retry       RetryPolicy
	metrics     *metrics.Metrics
	sleep       sleepFunc
	kind        string
}

// NewPageProcessor creates a processor for pages of the given kind
func NewPageProcessor(kind string, extractor LinkExtractor, rateLimiter *RateLimiter, retry RetryPolicy, m *metrics.Metrics) *DefaultPageProcessor {
	return &DefaultPageProcessor{
		extractor:   extractor,
		rateLimiter: rateLimiter,
		retry:       retry,
		metrics:     m,
		sleep:       sleepContext,
		kind:        kind,
	}
}

// Process fetches url and extracts its links
func (p *DefaultPageProcessor) Process(ctx context.Context, fetcher Fetcher, url string) *PageResult {
	result := &PageResult{URL: url}
	start := time.Now()

	limited := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if p.rateLimiter != nil {
			if err := p.rateLimiter.Wait(ctx, url); err != nil {
				return nil, err
			}
		}
		return fetcher.Fetch(ctx, url)
	})

	markup, attempts, err := retryFetch(ctx, limited, url, p.retry, p.sleep, p.metrics.IncRetry)
	result.Attempts = attempts
	result.Elapsed = time.Since(start)

	if err != nil {
		errType := errorType(err)
		p.metrics.ObserveFetch(p.kind, result.Elapsed, errType)
		result.Error = &CrawlError{
			URL:          url,
			Kind:         p.kind,
			ErrorType:    errType,
			ErrorMessage: fmt.Errorf("%w: %w", ErrFetchFailed, err).Error(),
			Attempts:     attempts,
			OccurredAt:   time.Now().UTC(),
		}
		return result
	}

	p.metrics.ObserveFetch(p.kind, result.Elapsed, "")
	result.Markup = markup

	if len(markup) == 0 {
		slog.Debug("Empty page, skipping extraction", "url", url)
		return result
	}

	links, err := p.extractor.Extract(markup)
	if err != nil {
		extractErr := &ExtractionError{URL: url, Err: err}
		slog.Warn("Link extraction failed", "url", url, "error", extractErr)
		result.Error = &CrawlError{
			URL:          url,
			Kind:         p.kind,
			ErrorType:    ErrorTypeExtraction,
			ErrorMessage: extractErr.Error(),
			Attempts:     attempts,
			OccurredAt:   time.Now().UTC(),
		}
		return result
	}

	result.Links = links
	slog.Debug("Found links", "url", url, "links_count", len(links))
	return result
}

var _ PageProcessor = (*DefaultPageProcessor)(nil)
