package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *CrawlConfig {
	cfg := DefaultConfig()
	cfg.SeedURL = "https://blog.example/archive"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Limit != 10 {
		t.Errorf("Expected limit 10, got %d", cfg.Limit)
	}

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.RequestTimeout)
	}

	if cfg.UserAgent != "PostCrawl/1.0" {
		t.Errorf("Expected user agent 'PostCrawl/1.0', got %s", cfg.UserAgent)
	}

	if cfg.Fetcher != FetcherHTTP {
		t.Errorf("Expected fetcher %q, got %q", FetcherHTTP, cfg.Fetcher)
	}

	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.Retry.MaxRetries)
	}

	if cfg.Politeness.MinDelay <= 0 || cfg.Politeness.MaxDelay < cfg.Politeness.MinDelay {
		t.Errorf("Expected a non-zero politeness range, got %v-%v", cfg.Politeness.MinDelay, cfg.Politeness.MaxDelay)
	}

	if cfg.Policy.ContentPathMarker != "/p/" {
		t.Errorf("Expected content marker '/p/', got %q", cfg.Policy.ContentPathMarker)
	}

	if cfg.Policy.Granularity != GranularityHost {
		t.Errorf("Expected granularity %q, got %q", GranularityHost, cfg.Policy.Granularity)
	}

	if cfg.Policy.RevisitSeedHost {
		t.Errorf("Expected revisit_seed_host false")
	}

	if cfg.Output.LinksFile != "extracted_links.txt" {
		t.Errorf("Expected links file 'extracted_links.txt', got %s", cfg.Output.LinksFile)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CrawlConfig)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(*CrawlConfig) {},
		},
		{
			name:    "missing seed",
			mutate:  func(c *CrawlConfig) { c.SeedURL = "" },
			wantErr: ErrNoSeedURL,
		},
		{
			name:    "relative seed",
			mutate:  func(c *CrawlConfig) { c.SeedURL = "/archive" },
			wantErr: ErrInvalidSeedURL,
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *CrawlConfig) { c.SeedURL = "ftp://blog.example/" },
			wantErr: ErrInvalidSeedURL,
		},
		{
			name:    "unparsable seed",
			mutate:  func(c *CrawlConfig) { c.SeedURL = "http://[::1" },
			wantErr: ErrInvalidSeedURL,
		},
		{
			name:    "zero limit",
			mutate:  func(c *CrawlConfig) { c.Limit = 0 },
			wantErr: ErrInvalidLimit,
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *CrawlConfig) { c.RequestTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative request delay",
			mutate:  func(c *CrawlConfig) { c.RequestDelay = -time.Second },
			wantErr: ErrInvalidRequestDelay,
		},
		{
			name:    "unknown fetcher",
			mutate:  func(c *CrawlConfig) { c.Fetcher = "selenium" },
			wantErr: ErrInvalidFetcher,
		},
		{
			name:    "inverted retry delays",
			mutate:  func(c *CrawlConfig) { c.Retry.MaxDelay = c.Retry.BaseDelay / 2 },
			wantErr: ErrInvalidRetry,
		},
		{
			name:    "inverted politeness range",
			mutate:  func(c *CrawlConfig) { c.Politeness.MaxDelay = c.Politeness.MinDelay / 2 },
			wantErr: ErrInvalidPoliteness,
		},
		{
			name:    "unknown granularity",
			mutate:  func(c *CrawlConfig) { c.Policy.Granularity = "domain" },
			wantErr: ErrInvalidGranularity,
		},
		{
			name:    "malformed header",
			mutate:  func(c *CrawlConfig) { c.Headers = []string{"NoColon"} },
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "empty links file",
			mutate:  func(c *CrawlConfig) { c.Output.LinksFile = "" },
			wantErr: ErrEmptyLinksFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsedHeaders(t *testing.T) {
	cfg := validConfig()
	cfg.Headers = []string{"X-Trace: abc", "Accept-Language:  ja ", "Empty:", "bad"}

	headers := cfg.ParsedHeaders()

	if len(headers) != 2 {
		t.Fatalf("Expected 2 headers, got %d: %v", len(headers), headers)
	}
	if headers["X-Trace"] != "abc" {
		t.Errorf("X-Trace = %q, want abc", headers["X-Trace"])
	}
	if headers["Accept-Language"] != "ja" {
		t.Errorf("Accept-Language = %q, want ja", headers["Accept-Language"])
	}
}
