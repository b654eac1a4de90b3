// Package config provides configuration management for the crawler.
// It defines configuration structures, default values and validation for
// crawling, classification policy and output parameters.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Fetcher modes
const (
	FetcherHTTP    = "http"    // Plain HTTP GET for every page
	FetcherBrowser = "browser" // Headless browser for every page
	FetcherHybrid  = "hybrid"  // Headless browser for index pages, HTTP for posts
)

// Enqueue granularity for discovered links
const (
	GranularityHost = "host" // Enqueue scheme://host of the discovered link
	GranularityURL  = "url"  // Enqueue the discovered link itself
)

// RetryConfig controls retries of transient fetch failures
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"` // Retries after the first attempt
	BaseDelay  time.Duration `mapstructure:"base_delay" yaml:"base_delay"`   // Backoff before the first retry
	MaxDelay   time.Duration `mapstructure:"max_delay" yaml:"max_delay"`     // Upper bound for any single backoff
}

// PolitenessConfig controls the randomized pause between post page fetches
type PolitenessConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// PolicyConfig holds the link classification policy
type PolicyConfig struct {
	ContentPathMarker string   `mapstructure:"content_path_marker" yaml:"content_path_marker"` // Path substring marking a post ("" disables)
	CommentSegments   []string `mapstructure:"comment_segments" yaml:"comment_segments"`       // Path segments marking comment threads
	PlatformDomains   []string `mapstructure:"platform_domains" yaml:"platform_domains"`       // Hosting platform domains treated as noise
	Granularity       string   `mapstructure:"granularity" yaml:"granularity"`                 // "host" or "url"
	RevisitSeedHost   bool     `mapstructure:"revisit_seed_host" yaml:"revisit_seed_host"`     // Allow the seed's site key to be enqueued again
}

// BrowserConfig configures the headless browser fetcher
type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless" yaml:"headless"`
	ScrollCount int           `mapstructure:"scroll_count" yaml:"scroll_count"` // Scrolls to the bottom before capturing markup
	ScrollDelay time.Duration `mapstructure:"scroll_delay" yaml:"scroll_delay"` // Pause after each scroll for lazy content
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"` // Pause after navigation
}

// OutputConfig selects where run results go
type OutputConfig struct {
	LinksFile    string `mapstructure:"links_file" yaml:"links_file"`       // Newline-delimited discovered links
	ArchiveFile  string `mapstructure:"archive_file" yaml:"archive_file"`   // URL -> markup document ("" disables)
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // SQLite export of the run ("" disables)
}

// LogConfig configures logging output
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" or "text"
	File   string `mapstructure:"file" yaml:"file"`
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Basic crawling parameters
	SeedURL        string        `mapstructure:"seed_url" yaml:"seed_url"`               // Starting index/archive page
	Limit          int           `mapstructure:"limit" yaml:"limit"`                     // Maximum frontier pops per run
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum interval between requests to one host
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Per-request timeout
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	Headers        []string      `mapstructure:"headers" yaml:"headers"`                 // Extra headers in "Name: Value" form
	Fetcher        string        `mapstructure:"fetcher" yaml:"fetcher"`                 // "http", "browser" or "hybrid"
	MetricsAddr    string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`       // Serve Prometheus metrics while crawling ("" disables)

	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	Politeness PolitenessConfig `mapstructure:"politeness" yaml:"politeness"`
	Policy     PolicyConfig     `mapstructure:"policy" yaml:"policy"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		Limit:          10,
		RequestDelay:   250 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "PostCrawl/1.0",
		Fetcher:        FetcherHTTP,
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   10 * time.Second,
		},
		Politeness: PolitenessConfig{
			MinDelay: 1 * time.Second,
			MaxDelay: 3 * time.Second,
		},
		Policy: PolicyConfig{
			ContentPathMarker: "/p/",
			CommentSegments:   []string{"comment", "comments"},
			PlatformDomains:   []string{"substack.com"},
			Granularity:       GranularityHost,
		},
		Browser: BrowserConfig{
			Headless:    true,
			ScrollCount: 5,
			ScrollDelay: 750 * time.Millisecond,
			SettleDelay: 2 * time.Second,
		},
		Output: OutputConfig{
			LinksFile: "extracted_links.txt",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if err := ValidateSeedURL(c.SeedURL); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return ErrInvalidLimit
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}

	switch c.Fetcher {
	case FetcherHTTP, FetcherBrowser, FetcherHybrid:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFetcher, c.Fetcher)
	}

	if c.Retry.MaxRetries < 0 || c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return ErrInvalidRetry
	}
	if c.Politeness.MinDelay < 0 || c.Politeness.MaxDelay < c.Politeness.MinDelay {
		return ErrInvalidPoliteness
	}

	switch c.Policy.Granularity {
	case GranularityHost, GranularityURL:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidGranularity, c.Policy.Granularity)
	}

	for _, header := range c.Headers {
		if i := strings.Index(header, ":"); i <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidHeader, header)
		}
	}

	if c.Output.LinksFile == "" {
		return ErrEmptyLinksFile
	}
	return nil
}

// ValidateSeedURL reports whether raw is usable as a crawl seed: an absolute
// http or https URL with a host.
func ValidateSeedURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrNoSeedURL
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSeedURL, raw)
	}
	return nil
}

// ParsedHeaders returns the configured extra headers as a map.
// Entries without a name or a value are skipped.
func (c *CrawlConfig) ParsedHeaders() map[string]string {
	headers := make(map[string]string, len(c.Headers))
	for _, header := range c.Headers {
		colon := strings.Index(header, ":")
		if colon <= 0 {
			continue
		}
		key := strings.TrimSpace(header[:colon])
		value := strings.TrimSpace(header[colon+1:])
		if key == "" || value == "" {
			continue
		}
		headers[key] = value
	}
	return headers
}
