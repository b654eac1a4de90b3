package config

import "errors"

// Configuration errors are fatal to a run: they are reported before any
// page is fetched.
var (
	// ErrNoSeedURL is returned when no seed URL is provided
	ErrNoSeedURL = errors.New("no seed URL provided")

	// ErrInvalidSeedURL is returned when the seed is not an absolute http(s) URL
	ErrInvalidSeedURL = errors.New("seed URL must be an absolute http or https URL")

	// ErrInvalidLimit is returned when the crawl budget is not greater than 0
	ErrInvalidLimit = errors.New("limit must be greater than 0")

	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")

	// ErrInvalidRequestDelay is returned when request delay is negative
	ErrInvalidRequestDelay = errors.New("request_delay cannot be negative")

	// ErrInvalidFetcher is returned for an unknown fetcher mode
	ErrInvalidFetcher = errors.New("fetcher must be one of http, browser, hybrid")

	// ErrInvalidRetry is returned when retry settings are inconsistent
	ErrInvalidRetry = errors.New("retry settings must be non-negative and max_delay >= base_delay")

	// ErrInvalidPoliteness is returned when the politeness range is inverted or negative
	ErrInvalidPoliteness = errors.New("politeness delays must be non-negative and max_delay >= min_delay")

	// ErrInvalidGranularity is returned for an unknown enqueue granularity
	ErrInvalidGranularity = errors.New("policy granularity must be host or url")

	// ErrInvalidHeader is returned when a header is not in "Name: Value" form
	ErrInvalidHeader = errors.New("header must be in 'Name: Value' format")

	// ErrEmptyLinksFile is returned when the links output path is empty
	ErrEmptyLinksFile = errors.New("output links_file cannot be empty")
)
