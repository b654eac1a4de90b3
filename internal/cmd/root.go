// Package cmd provides the command-line interface for PostCrawl.
// It handles command parsing, configuration loading, and crawler execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/masahif/postcrawl/internal/config"
	"github.com/masahif/postcrawl/internal/crawler"
	"github.com/masahif/postcrawl/internal/logging"
	"github.com/masahif/postcrawl/internal/metrics"
	"github.com/masahif/postcrawl/internal/parser"
	"github.com/masahif/postcrawl/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postcrawl [seed-url]",
	Short: "Discover blog posts and the blogs they link to",
	Long: `PostCrawl starts from a blog's archive page, collects its post links,
reads every post and follows the outbound links to other blogs.

It writes the discovered links to a text file and can keep the raw markup
of every fetched page as a JSON/YAML archive or a SQLite export.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawler,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx; cancelling ctx stops the
// crawl and still writes the partial results.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./postcrawl.yml)")

	// Configuration management flags
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Basic crawling flags
	rootCmd.Flags().IntP("limit", "l", defaults.Limit, "Stop after visiting N frontier entries")
	rootCmd.Flags().String("fetcher", defaults.Fetcher, "Page fetcher: 'http', 'browser' or 'hybrid' (browser for index pages)")
	rootCmd.Flags().DurationP("delay", "r", defaults.RequestDelay, "Minimum interval between requests to one host")
	rootCmd.Flags().DurationP("timeout", "t", defaults.RequestTimeout, "Per-request timeout")
	rootCmd.Flags().StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	rootCmd.Flags().StringSliceP("header", "H", []string{}, "Custom HTTP headers in 'Name: Value' format (use multiple times for multiple headers)")

	// Retry and politeness flags
	rootCmd.Flags().Int("max-retries", defaults.Retry.MaxRetries, "Retries of a transient fetch failure")
	rootCmd.Flags().Duration("retry-base-delay", defaults.Retry.BaseDelay, "Backoff before the first retry (doubles each retry)")
	rootCmd.Flags().Duration("retry-max-delay", defaults.Retry.MaxDelay, "Upper bound for a single backoff")
	rootCmd.Flags().Duration("politeness-min", defaults.Politeness.MinDelay, "Minimum pause before each post fetch")
	rootCmd.Flags().Duration("politeness-max", defaults.Politeness.MaxDelay, "Maximum pause before each post fetch")

	// Classification policy flags
	rootCmd.Flags().String("content-marker", defaults.Policy.ContentPathMarker, "Path substring that marks a post link")
	rootCmd.Flags().StringSlice("comment-segments", defaults.Policy.CommentSegments, "Path segments that mark comment threads")
	rootCmd.Flags().StringSlice("platform-domains", defaults.Policy.PlatformDomains, "Hosting platform domains excluded from outbound links")
	rootCmd.Flags().String("granularity", defaults.Policy.Granularity, "Frontier entry per discovered link: 'host' or 'url'")
	rootCmd.Flags().Bool("revisit-seed-host", defaults.Policy.RevisitSeedHost, "Allow the seed host to be visited again")

	// Browser flags
	rootCmd.Flags().Bool("headless", defaults.Browser.Headless, "Run the browser without a window")
	rootCmd.Flags().Int("scroll-count", defaults.Browser.ScrollCount, "Scrolls to the bottom of a page before capturing it")
	rootCmd.Flags().Duration("scroll-delay", defaults.Browser.ScrollDelay, "Pause after each scroll")

	// Output flags
	rootCmd.Flags().StringP("output", "o", defaults.Output.LinksFile, "File receiving the discovered links, one per line")
	rootCmd.Flags().String("archive", "", "Write fetched markup to this file (.json, .yaml or .yml)")
	rootCmd.Flags().StringP("database", "d", "", "Export the run to this SQLite database")
	rootCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while crawling (e.g. :9090)")

	// Logging flags
	rootCmd.Flags().String("log-level", defaults.Log.Level, "Log level: debug, info, warn or error")
	rootCmd.Flags().String("log-format", defaults.Log.Format, "Log format: json or text")
	rootCmd.Flags().String("log-file", "", "Also write logs to this size-rotated file")

	// Bind flags to viper
	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"limit", "limit"},
		{"fetcher", "fetcher"},
		{"request_delay", "delay"},
		{"request_timeout", "timeout"},
		{"user_agent", "user-agent"},
		{"headers", "header"},
		{"metrics_addr", "metrics-addr"},
		{"retry.max_retries", "max-retries"},
		{"retry.base_delay", "retry-base-delay"},
		{"retry.max_delay", "retry-max-delay"},
		{"politeness.min_delay", "politeness-min"},
		{"politeness.max_delay", "politeness-max"},
		{"policy.content_path_marker", "content-marker"},
		{"policy.comment_segments", "comment-segments"},
		{"policy.platform_domains", "platform-domains"},
		{"policy.granularity", "granularity"},
		{"policy.revisit_seed_host", "revisit-seed-host"},
		{"browser.headless", "headless"},
		{"browser.scroll_count", "scroll-count"},
		{"browser.scroll_delay", "scroll-delay"},
		{"output.links_file", "output"},
		{"output.archive_file", "archive"},
		{"output.database_path", "database"},
		{"log.level", "log-level"},
		{"log.format", "log-format"},
		{"log.file", "log-file"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("postcrawl")
	}

	viper.AutomaticEnv() // read in environment variables that match
	viper.SetEnvPrefix("PC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("PostCrawl/%s", version)
	}
	return "PostCrawl/dev"
}

func showCurrentConfig(cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Validate configuration before showing it
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Printf("# Current PostCrawl Configuration\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Configuration file search paths: ./postcrawl.yml\n")
	fmt.Printf("# Environment variables prefix: PC_\n\n")

	fmt.Print(string(yamlData))

	fmt.Printf("\n# Configuration source priority:\n")
	fmt.Printf("# 1. Command-line arguments (highest priority)\n")
	fmt.Printf("# 2. Environment variables (PC_ prefix)\n")
	fmt.Printf("# 3. Configuration file (postcrawl.yml)\n")
	fmt.Printf("# 4. Default values (lowest priority)\n")

	return nil
}

// loadConfig merges defaults, viper sources and the positional seed
func loadConfig(cmd *cobra.Command, args []string) (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	// Update User-Agent with dynamic version if not explicitly set
	if !cmd.Flags().Changed("user-agent") && cfg.UserAgent == config.DefaultConfig().UserAgent {
		cfg.UserAgent = generateUserAgent()
	}

	return cfg, nil
}

func runCrawler(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if showConfig {
		return showCurrentConfig(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.ParseLevel(cfg.Log.Level)
	logConfig.Format = cfg.Log.Format
	logConfig.FilePath = cfg.Log.File
	logCloser, err := logging.SetDefault(*logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	fmt.Printf("Starting crawler with configuration:\n")
	fmt.Printf("  Seed URL: %s\n", cfg.SeedURL)
	fmt.Printf("  Limit: %d\n", cfg.Limit)
	fmt.Printf("  Fetcher: %s\n", cfg.Fetcher)
	fmt.Printf("  Politeness: %v - %v\n", cfg.Politeness.MinDelay, cfg.Politeness.MaxDelay)
	fmt.Printf("  Output: %s\n", cfg.Output.LinksFile)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := executeCrawl(ctx, cfg)
	if err != nil {
		return err
	}

	if err := writeOutputs(ctx, cfg, result); err != nil {
		return err
	}

	if result.Cancelled {
		fmt.Printf("Crawl interrupted, partial results saved.\n")
	}
	fmt.Printf("Total links found: %d\n", len(result.Links))
	return nil
}

// buildFetchers returns the default (post) fetcher, the index fetcher override
// (nil when the default serves both) and a cleanup func for the browser session.
func buildFetchers(ctx context.Context, cfg *config.CrawlConfig) (crawler.Fetcher, crawler.Fetcher, func(), error) {
	client := crawler.NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout)
	client.SetCustomHeaders(cfg.ParsedHeaders())

	if cfg.Fetcher == config.FetcherHTTP {
		return client, nil, func() { _ = client.Close() }, nil
	}

	browser, err := crawler.NewBrowserFetcher(ctx, crawler.BrowserOptions{
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.RequestTimeout + time.Duration(cfg.Browser.ScrollCount)*cfg.Browser.ScrollDelay + cfg.Browser.SettleDelay,
		Headless:    cfg.Browser.Headless,
		ScrollCount: cfg.Browser.ScrollCount,
		ScrollDelay: cfg.Browser.ScrollDelay,
		SettleDelay: cfg.Browser.SettleDelay,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = browser.Close()
		_ = client.Close()
	}

	if cfg.Fetcher == config.FetcherHybrid {
		return client, browser, cleanup, nil
	}
	return browser, nil, cleanup, nil
}

// executeCrawl runs the crawl, alongside the metrics server when configured
func executeCrawl(ctx context.Context, cfg *config.CrawlConfig) (*crawler.Result, error) {
	fetcher, indexFetcher, cleanup, err := buildFetchers(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}
	defer cleanup()

	m := metrics.NewMetrics()
	opts := []crawler.Option{crawler.WithMetrics(m), crawler.WithIndexFetcher(indexFetcher)}

	c, err := crawler.NewCrawler(cfg, fetcher, parser.NewLinkExtractor(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crawler: %w", err)
	}

	if cfg.MetricsAddr == "" {
		return c.Run(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	var result *crawler.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Serving metrics", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		var err error
		result, err = c.Run(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// writeOutputs persists the links file, the archive and the SQLite export.
// It runs even when ctx was cancelled so that partial results are kept.
func writeOutputs(ctx context.Context, cfg *config.CrawlConfig, result *crawler.Result) error {
	if err := storage.WriteLinks(cfg.Output.LinksFile, result.Links); err != nil {
		return err
	}
	slog.Info("Links saved", "path", cfg.Output.LinksFile, "count", len(result.Links))

	if cfg.Output.ArchiveFile != "" {
		if err := storage.WriteArchive(cfg.Output.ArchiveFile, result.Archive); err != nil {
			return err
		}
		slog.Info("Archive saved", "path", cfg.Output.ArchiveFile, "pages", len(result.Archive))
	}

	if cfg.Output.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.DatabasePath), 0750); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := storage.NewSQLiteStorage(cfg.Output.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() { _ = store.Close() }()

		if err := store.SaveRun(context.WithoutCancel(ctx), result); err != nil {
			return fmt.Errorf("failed to export run: %w", err)
		}
		slog.Info("Run exported", "path", cfg.Output.DatabasePath, "run_id", result.RunID)
	}

	return nil
}
