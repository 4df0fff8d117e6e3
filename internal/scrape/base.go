package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/logger"
)

// Fetch limits.
const (
	defaultFetchTimeout = 30 * time.Second
	maxBodyBytes        = 5 << 20
)

// defaultUserAgent is sent when neither the source nor global config set one.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// imgSrcPattern matches img tag src attributes for raw image URL extraction.
var imgSrcPattern = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)

// baseAdapter provides the shared capabilities every adapter builds on:
// browser-like headers, polite rate limiting with jitter, robots.txt checks,
// content hashing, and raw image URL extraction.
type baseAdapter struct {
	source *domain.SourceConfig
	logger logger.Interface
	client *http.Client

	userAgent    string
	fetchTimeout time.Duration

	// robots caches per-host robots.txt groups for the life of one crawl.
	robotsMu sync.Mutex
	robots   map[string]*robotstxt.Group

	// rng backs jitter; seeded per adapter so crawls do not share state.
	rng *rand.Rand
}

func newBaseAdapter(source *domain.SourceConfig, opts Options) *baseAdapter {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &baseAdapter{
		source:       source,
		logger:       log.WithSource(source.ID),
		client:       client,
		userAgent:    ua,
		fetchTimeout: timeout,
		robots:       make(map[string]*robotstxt.Group),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Source returns the configuration this adapter operates on.
func (b *baseAdapter) Source() *domain.SourceConfig { return b.source }

// Fetch retrieves one page. Ordinary HTTP and network failures never surface
// as errors; they are encoded on the returned RawPage.
func (b *baseAdapter) Fetch(ctx context.Context, pageURL string) *domain.RawPage {
	page := &domain.RawPage{
		SourceID:    b.source.ID,
		URL:         pageURL,
		FetchedAt:   time.Now().UTC(),
		ParseStatus: domain.ParsePending,
	}

	b.waitRateLimit(ctx)

	if !b.robotsAllowed(ctx, pageURL) {
		page.ParseStatus = domain.ParseFailed
		page.ErrorMessage = "disallowed by robots.txt"
		return page
	}

	body, status, err := b.doRequest(ctx, pageURL)
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

	page.Content = string(body)
	page.ContentHash = HashContent(body)
	page.ImageURLs = ExtractImageURLs(page.Content)
	return page
}

// doRequest issues one GET with browser-like headers and a bounded timeout.
func (b *baseAdapter) doRequest(ctx context.Context, pageURL string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, 0, err
	}
	b.setHeaders(req, b.userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// setHeaders applies realistic browser request headers.
func (b *baseAdapter) setHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept",
		"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// waitRateLimit sleeps the source's base delay plus uniform random jitter.
// Applied before every request; politeness wins over throughput.
func (b *baseAdapter) waitRateLimit(ctx context.Context) {
	limit := b.source.Scrape.RateLimit
	delay := limit.BaseDelay
	if limit.Jitter > 0 {
		delay += time.Duration(b.rng.Int63n(int64(limit.Jitter)))
	}
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// robotsAllowed checks the host's robots.txt, caching the parsed group.
// Unreachable or malformed robots files allow the fetch.
func (b *baseAdapter) robotsAllowed(ctx context.Context, pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}

	b.robotsMu.Lock()
	group, ok := b.robots[parsed.Host]
	b.robotsMu.Unlock()

	if !ok {
		group = b.fetchRobotsGroup(ctx, parsed)
		b.robotsMu.Lock()
		b.robots[parsed.Host] = group
		b.robotsMu.Unlock()
	}
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

// fetchRobotsGroup downloads and parses robots.txt for one host.
func (b *baseAdapter) fetchRobotsGroup(ctx context.Context, pageURL *url.URL) *robotstxt.Group {
	robotsURL := pageURL.Scheme + "://" + pageURL.Host + "/robots.txt"
	body, status, err := b.doRequest(ctx, robotsURL)
	if err != nil || status != http.StatusOK {
		return nil
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return robots.FindGroup(b.userAgent)
}

// HashContent returns the hex-encoded SHA-256 digest of a page body.
func HashContent(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ExtractImageURLs pulls raw img src URLs out of an HTML document.
func ExtractImageURLs(html string) []string {
	matches := imgSrcPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		src := m[1]
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		urls = append(urls, src)
	}
	return urls
}
