package scrape

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// BrowserAdapter is the headless-browser variant of the marketplace adapter,
// used for pages that require script execution to render listings. It rotates
// user agents per page, suppresses automation-detectable browser signals,
// blocks non-essential resource types, and on a block signal (HTTP 403) backs
// off for a long fixed interval and retries once before abandoning the page.
type BrowserAdapter struct {
	*MarketplaceAdapter

	allocCtx    context.Context
	allocCancel context.CancelFunc
	allocOnce   sync.Once

	// blockBackoff is the wait applied after a 403 before the single retry.
	blockBackoff time.Duration
	// pageTimeout bounds one navigation plus render.
	pageTimeout time.Duration
}

// Ensure BrowserAdapter implements Adapter
var _ Adapter = (*BrowserAdapter)(nil)

// Browser defaults.
const (
	defaultBlockBackoff = 5 * time.Minute
	defaultPageTimeout  = 45 * time.Second
)

// userAgentPool rotates per page to avoid a stable automation fingerprint.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// blockedResourcePatterns keeps heavy, non-essential resources from loading.
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
	"*.woff", "*.woff2", "*.ttf", "*.otf",
	"*.mp4", "*.webm", "*.mp3",
}

// NewBrowserAdapter builds the headless-browser marketplace adapter.
func NewBrowserAdapter(source *domain.SourceConfig, opts Options) *BrowserAdapter {
	return &BrowserAdapter{
		MarketplaceAdapter: NewMarketplaceAdapter(source, opts),
		blockBackoff:       defaultBlockBackoff,
		pageTimeout:        defaultPageTimeout,
	}
}

// allocator lazily starts the shared browser process. One allocator serves
// every page of a crawl; tabs are created per fetch.
func (a *BrowserAdapter) allocator(ctx context.Context) context.Context {
	a.allocOnce.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			// Suppress the automation fingerprint exposed to page scripts.
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("exclude-switches", "enable-automation"),
		)
		a.allocCtx, a.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	})
	return a.allocCtx
}

// Close shuts down the shared browser process.
func (a *BrowserAdapter) Close() {
	if a.allocCancel != nil {
		a.allocCancel()
	}
}

// Fetch renders one page in a fresh tab. Failures never surface as errors;
// they are encoded on the RawPage like every other adapter.
func (a *BrowserAdapter) Fetch(ctx context.Context, pageURL string) *domain.RawPage {
	page := &domain.RawPage{
		SourceID:    a.source.ID,
		URL:         pageURL,
		FetchedAt:   time.Now().UTC(),
		ParseStatus: domain.ParsePending,
	}

	a.waitRateLimit(ctx)

	html, status, err := a.renderPage(ctx, pageURL)
	if status == http.StatusForbidden {
		// Repeated block signal: one long backoff, one retry, then give up.
		a.logger.Warn("Blocked by source, backing off",
			"url", pageURL, "backoff", a.blockBackoff)
		select {
		case <-time.After(a.blockBackoff):
		case <-ctx.Done():
			page.ParseStatus = domain.ParseFailed
			page.ErrorMessage = ctx.Err().Error()
			return page
		}
		html, status, err = a.renderPage(ctx, pageURL)
	}

	page.HTTPStatus = status
	if err != nil {
		page.ParseStatus = domain.ParseFailed
		page.ErrorMessage = err.Error()
		return page
	}
	if status != http.StatusOK {
		page.ParseStatus = domain.ParseFailed
		page.ErrorMessage = "unexpected status " + http.StatusText(status)
		return page
	}

	page.Content = html
	page.ContentHash = HashContent([]byte(html))
	page.ImageURLs = ExtractImageURLs(html)
	return page
}

// renderPage navigates a fresh tab to the URL and returns the rendered HTML
// together with the main document's response status.
func (a *BrowserAdapter) renderPage(ctx context.Context, pageURL string) (string, int, error) {
	tabCtx, cancelTab := chromedp.NewContext(a.allocator(ctx),
		chromedp.WithLogf(func(string, ...any) {}))
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, a.pageTimeout)
	defer cancelRun()

	status := trackDocumentStatus(runCtx, pageURL)

	var html string
	err := chromedp.Run(runCtx,
		network.Enable(),
		network.SetBlockedURLS(blockedResourcePatterns),
		emulation.SetUserAgentOverride(a.nextUserAgent()),
		// navigator.webdriver is the first thing bot detectors probe.
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`, nil),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", 0, err
	}
	return html, status(), nil
}

// trackDocumentStatus listens for the main document response and returns a
// getter for its status code, defaulting to 200 when no event was observed.
func trackDocumentStatus(ctx context.Context, pageURL string) func() int {
	var mu sync.Mutex
	status := 0

	chromedp.ListenTarget(ctx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		if status == 0 || resp.Response.URL == pageURL {
			status = int(resp.Response.Status)
		}
		mu.Unlock()
	})

	return func() int {
		mu.Lock()
		defer mu.Unlock()
		if status == 0 {
			return http.StatusOK
		}
		return status
	}
}

// nextUserAgent picks a user agent for the next page.
func (a *BrowserAdapter) nextUserAgent() string {
	return userAgentPool[a.rng.Intn(len(userAgentPool))]
}
