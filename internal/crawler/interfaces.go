package crawler

import (
	"context"
)

// Fetcher retrieves the markup of a page.
// A nil slice with a nil error is an empty page, not a failure.
// Implementations return *TransientError for failures worth retrying.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LinkExtractor returns the absolute hyperlink targets found in markup
type LinkExtractor interface {
	Extract(markup []byte) ([]string, error)
}

// PageProcessor fetches a page and extracts its links
type PageProcessor interface {
	Process(ctx context.Context, fetcher Fetcher, url string) *PageResult
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}
