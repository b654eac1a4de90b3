package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the headless browser fetcher
type BrowserOptions struct {
	UserAgent   string
	Timeout     time.Duration // Per page, navigation and scrolling included
	Headless    bool
	ScrollCount int           // Scrolls to the bottom of the page before capture
	ScrollDelay time.Duration // Pause after each scroll so lazy content renders
	SettleDelay time.Duration // Pause after navigation
}

// BrowserFetcher renders pages in one headless Chrome session. The session
// is started by NewBrowserFetcher and must be released with Close.
// Each Fetch opens a fresh tab in that session.
type BrowserFetcher struct {
	opts BrowserOptions

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closed        bool
}

// NewBrowserFetcher launches the browser
func NewBrowserFetcher(ctx context.Context, opts BrowserOptions) (*BrowserFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ScrollCount < 0 {
		opts.ScrollCount = 0
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), execOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}))

	// An empty Run starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	slog.Info("Browser session started", "headless", opts.Headless, "scroll_count", opts.ScrollCount)

	return &BrowserFetcher{
		opts:          opts,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Fetch navigates to url, scrolls to force lazy-loaded content and returns
// the outer HTML of the rendered document. Browser failures are transient.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser fetcher is closed")
	}
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	b.mu.Unlock()
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelTimeout()

	// Tie the tab to the caller's context as well as the session
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.opts.SettleDelay),
	}
	for i := 0; i < b.opts.ScrollCount; i++ {
		var height int64
		actions = append(actions,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height),
			chromedp.Sleep(b.opts.ScrollDelay),
		)
	}

	var markup string
	actions = append(actions, chromedp.OuterHTML("html", &markup, chromedp.ByQuery))

	start := time.Now()
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{URL: url, Err: fmt.Errorf("chromedp run: %w", err)}
	}

	slog.Debug("Rendered page", "url", url, "bytes", len(markup), "elapsed", time.Since(start))
	if markup == "" {
		return nil, nil
	}
	return []byte(markup), nil
}

// Close shuts down the browser session. It is safe to call more than once.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.cancelBrowser()
	b.cancelAlloc()
	slog.Info("Browser session closed")
	return nil
}

var _ Fetcher = (*BrowserFetcher)(nil)
