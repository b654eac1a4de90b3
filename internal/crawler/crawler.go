// Package crawler provides the core post discovery crawl: a breadth-first
// frontier of sites, link classification, retry-tolerant fetching and the
// page archive. Fetching and link extraction are pluggable.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/masahif/postcrawl/internal/config"
	"github.com/masahif/postcrawl/internal/metrics"
)

// Crawler drives a crawl run from a single seed URL
type Crawler struct {
	config         *config.CrawlConfig
	policy         Policy
	indexFetcher   Fetcher
	postFetcher    Fetcher
	extractor      LinkExtractor
	indexProcessor PageProcessor
	postProcessor  PageProcessor
	politeness     Politeness
	metrics        *metrics.Metrics
	sleep          sleepFunc
}

// Option customizes a Crawler
type Option func(*Crawler)

// WithIndexFetcher fetches frontier entries (index/archive pages) with f
// instead of the default fetcher. Post pages keep using the default.
func WithIndexFetcher(f Fetcher) Option {
	return func(c *Crawler) {
		if f != nil {
			c.indexFetcher = f
		}
	}
}

// WithMetrics records crawl metrics in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// NewCrawler creates a crawler. The configuration is validated here;
// an invalid seed or setting is returned before any page is fetched.
func NewCrawler(cfg *config.CrawlConfig, fetcher Fetcher, extractor LinkExtractor, opts ...Option) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if fetcher == nil || extractor == nil {
		return nil, fmt.Errorf("crawler requires a fetcher and a link extractor")
	}

	c := &Crawler{
		config:       cfg,
		policy:       NewPolicy(cfg.Policy),
		indexFetcher: fetcher,
		postFetcher:  fetcher,
		extractor:    extractor,
		politeness:   NewPoliteness(cfg.Politeness.MinDelay, cfg.Politeness.MaxDelay),
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	rateLimiter := NewRateLimiter(cfg.RequestDelay)
	retry := NewRetryPolicy(cfg.Retry)
	c.indexProcessor = NewPageProcessor(KindIndex, extractor, rateLimiter, retry, c.metrics)
	c.postProcessor = NewPageProcessor(KindPost, extractor, rateLimiter, retry, c.metrics)

	return c, nil
}

// Policy returns the classification policy in use
func (c *Crawler) Policy() Policy {
	return c.policy
}

// runState is owned by a single Run call
type runState struct {
	seed      *url.URL
	frontier  *Frontier
	seen      map[string]struct{}
	results   []Discovery
	archive   map[string]string
	attempted map[string]struct{}
	errors    []*CrawlError
	stats     CrawlStats
}

// Run crawls from the configured seed until the frontier is empty, the
// budget is spent or ctx is cancelled. Per-page failures never fail the
// run; cancellation returns the partial result with Cancelled set.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	seed, err := parseAbsolute(c.config.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidSeedURL, err)
	}

	run := &runState{
		seed:      seed,
		frontier:  NewFrontier(),
		seen:      make(map[string]struct{}),
		archive:   make(map[string]string),
		attempted: make(map[string]struct{}),
		stats:     CrawlStats{StartTime: time.Now()},
	}
	result := &Result{RunID: uuid.NewString(), SeedURL: seed.String()}

	// Seeding
	run.frontier.Enqueue(seed.String())
	if !c.policy.RevisitSeedHost {
		run.frontier.MarkVisited(hostKey(seed))
	}
	c.metrics.SetFrontierSize(run.frontier.Len())

	slog.Info("Starting crawler", "run_id", result.RunID, "seed_url", result.SeedURL, "limit", c.config.Limit)

	for {
		if ctx.Err() != nil {
			slog.Info("Crawling cancelled", "frontier_pops", run.stats.FrontierPops)
			result.Cancelled = true
			break
		}
		if run.stats.FrontierPops >= c.config.Limit {
			slog.Info("Crawl budget exhausted", "limit", c.config.Limit, "pending", run.frontier.Len())
			break
		}

		entry, ok := run.frontier.Dequeue()
		if !ok {
			slog.Info("Frontier exhausted")
			break
		}
		run.stats.FrontierPops++
		c.metrics.IncPop()
		c.metrics.SetFrontierSize(run.frontier.Len())

		c.visitIndex(ctx, run, entry)
		slog.Info("Total links found so far", "count", len(run.results), "pending", run.frontier.Len())
	}

	if ctx.Err() != nil {
		result.Cancelled = true
	}
	c.finish(run, result)
	return result, nil
}

// visitIndex processes one frontier entry: classify its post candidates,
// fetch each of them and enqueue the sites they link to.
func (c *Crawler) visitIndex(ctx context.Context, run *runState, entry string) {
	slog.Info("Crawling", "url", entry)

	page := c.fetchPage(ctx, run, c.indexProcessor, c.indexFetcher, entry)
	if page == nil {
		return
	}

	posts := c.policy.PostCandidates(entry, page.Links)
	added := c.accumulate(run, posts, entry, DiscoveryPost)
	slog.Info("Found post links", "url", entry, "posts", len(posts), "new", added)

	for _, post := range posts {
		if ctx.Err() != nil {
			return
		}
		if _, done := run.attempted[post]; done {
			continue
		}
		if !c.claimPost(run, post) {
			slog.Debug("Skipping visited post", "url", post)
			continue
		}
		run.attempted[post] = struct{}{}

		if _, archived := run.archive[post]; !archived {
			if err := c.sleep(ctx, c.politeness.Next()); err != nil {
				return
			}
		}

		postPage := c.fetchPage(ctx, run, c.postProcessor, c.postFetcher, post)
		if postPage == nil {
			continue
		}

		outbound := c.policy.OutboundLinks(postPage.Links)
		added := c.accumulate(run, outbound, post, DiscoveryOutbound)
		slog.Info("Found blog links", "url", post, "links", len(outbound), "new", added)

		for _, link := range outbound {
			c.enqueueSite(run, link)
		}
	}
}

// claimPost reports whether post may be fetched. With url granularity
// posts share the frontier's key space, so the post is marked visited there.
func (c *Crawler) claimPost(run *runState, post string) bool {
	if c.policy.Granularity != config.GranularityURL {
		return true
	}
	key, ok := c.policy.SiteKey(post)
	if !ok {
		return true
	}
	return run.frontier.Claim(key)
}

// fetchPage returns the processed page, or nil if it could not be fetched.
// Archived pages are re-extracted instead of fetched again.
func (c *Crawler) fetchPage(ctx context.Context, run *runState, processor PageProcessor, fetcher Fetcher, pageURL string) *PageResult {
	if markup, ok := run.archive[pageURL]; ok {
		page := &PageResult{URL: pageURL, Markup: []byte(markup)}
		links, err := c.extractor.Extract(page.Markup)
		if err != nil {
			slog.Warn("Link extraction failed", "url", pageURL, "error", &ExtractionError{URL: pageURL, Err: err})
			return page
		}
		page.Links = links
		return page
	}

	page := processor.Process(ctx, fetcher, pageURL)
	if page.Attempts > 1 {
		run.stats.Retries += page.Attempts - 1
	}

	if page.Error != nil && !page.Fetched() {
		if ctx.Err() != nil {
			return nil
		}
		run.stats.FetchFailures++
		run.errors = append(run.errors, page.Error)
		slog.Warn("Failed to fetch page", "url", pageURL, "kind", page.Error.Kind, "error_type", page.Error.ErrorType, "attempts", page.Attempts, "error", page.Error.ErrorMessage)
		return nil
	}

	run.stats.PagesFetched++
	if page.Error != nil {
		run.errors = append(run.errors, page.Error)
	}
	if len(page.Markup) > 0 {
		if _, exists := run.archive[pageURL]; !exists {
			run.archive[pageURL] = string(page.Markup)
		}
	}
	return page
}

// accumulate merges links into the result set and returns how many were new
func (c *Crawler) accumulate(run *runState, links []string, source, kind string) int {
	added := 0
	now := time.Now().UTC()
	for _, link := range links {
		if _, dup := run.seen[link]; dup {
			continue
		}
		run.seen[link] = struct{}{}
		run.results = append(run.results, Discovery{URL: link, SourceURL: source, Kind: kind, DiscoveredAt: now})
		added++
	}
	c.metrics.AddDiscovered(kind, added)
	return added
}

// enqueueSite adds the frontier entry for a discovered link, if it is new
func (c *Crawler) enqueueSite(run *runState, link string) {
	key, ok := c.policy.SiteKey(link)
	if !ok {
		return
	}
	if !c.policy.RevisitSeedHost {
		if u, err := url.Parse(key); err == nil && sameSite(u, run.seed) {
			return
		}
	}
	if run.frontier.Enqueue(key) {
		run.stats.SitesEnqueued++
		c.metrics.IncSitesEnqueued()
		c.metrics.SetFrontierSize(run.frontier.Len())
		slog.Info("Added site to visit list", "url", key)
	}
}

// finish applies the comment filter and fills result
func (c *Crawler) finish(run *runState, result *Result) {
	run.stats.LinksDiscovered = len(run.results)
	run.stats.Duration = time.Since(run.stats.StartTime)

	result.Discoveries = make([]Discovery, 0, len(run.results))
	result.Links = make([]string, 0, len(run.results))
	for _, d := range run.results {
		if c.policy.IsComment(d.URL) {
			continue
		}
		result.Discoveries = append(result.Discoveries, d)
		result.Links = append(result.Links, d.URL)
	}
	result.Archive = run.archive
	result.Errors = run.errors
	result.Stats = run.stats

	slog.Info("Crawling completed",
		"run_id", result.RunID,
		"links", len(result.Links),
		"frontier_pops", run.stats.FrontierPops,
		"pages_fetched", run.stats.PagesFetched,
		"fetch_failures", run.stats.FetchFailures,
		"retries", run.stats.Retries,
		"sites_enqueued", run.stats.SitesEnqueued,
		"cancelled", result.Cancelled,
		"duration", run.stats.Duration,
	)
}
