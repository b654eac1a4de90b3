package crawler

import "time"

// Page kinds
const (
	KindIndex = "index" // Frontier entry: seed or discovered site page
	KindPost  = "post"  // Post candidate fetched from an index page
)

// Discovery kinds
const (
	DiscoveryPost     = "post"     // Same-site post candidate found on an index page
	DiscoveryOutbound = "outbound" // Link found on a post page
)

// Discovery is one entry of the result set
type Discovery struct {
	URL          string    // Normalized discovered URL
	SourceURL    string    // Page the link was found on
	Kind         string    // DiscoveryPost or DiscoveryOutbound
	DiscoveredAt time.Time // UTC
}

// CrawlError represents a per-URL failure that was absorbed by the run
type CrawlError struct {
	URL          string    // URL where error occurred
	Kind         string    // KindIndex or KindPost
	ErrorType    string    // ErrorType* constant
	ErrorMessage string    // Detailed error message
	Attempts     int       // Fetch attempts made
	OccurredAt   time.Time // Error occurrence timestamp (UTC)
}

// PageResult represents the result of fetching and extracting one page
type PageResult struct {
	URL      string
	Markup   []byte   // nil when the page was empty or the fetch failed
	Links    []string // Absolute links in document order
	Attempts int
	Elapsed  time.Duration
	Error    *CrawlError
}

// Fetched reports whether the fetch itself succeeded
func (r *PageResult) Fetched() bool {
	return r.Error == nil || r.Error.ErrorType == ErrorTypeExtraction
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	FrontierPops    int // Dequeue operations, bounded by the crawl budget
	PagesFetched    int
	FetchFailures   int
	Retries         int
	SitesEnqueued   int // Frontier entries added after the seed
	LinksDiscovered int // Result set size before comment filtering
	StartTime       time.Time
	Duration        time.Duration
}

// Result is what a crawl run returns
type Result struct {
	RunID       string
	SeedURL     string
	Links       []string          // Deduplicated, comment-filtered, in discovery order
	Discoveries []Discovery       // Links with provenance, same filtering and order
	Archive     map[string]string // URL -> raw markup
	Errors      []*CrawlError
	Stats       CrawlStats
	Cancelled   bool // Run ended early because the context was cancelled
}
