package scrape

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	colly "github.com/gocolly/colly/v2"
)

// Discovery strategy cascade for sources with no bespoke URL enumeration:
// sitemap XML, then configured search pages, then a fixed list of common
// rental-section paths. The first strategy yielding results wins and results
// are de-duplicated by URL.

// listingPathPattern matches URL paths that look like individual listings.
var listingPathPattern = regexp.MustCompile(
	`(?i)/(?:listing|listings|rental|rentals|apartment|apartments|unit|property|properties|for-rent|building)s?/[^/]+`)

// commonRentalPaths are tried as a last resort when neither sitemap nor
// search pages yield listing URLs.
var commonRentalPaths = []string{
	"/rentals",
	"/for-rent",
	"/apartments",
	"/listings",
	"/apartments-for-rent",
	"/nyc/rentals",
}

// sitemapURLSet mirrors the urlset element of a sitemap XML document.
type sitemapURLSet struct {
	URLs []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
}

// discoverListingURLs runs the discovery cascade for one pagination page.
// Page indexes beyond the first only apply to search-page discovery; sitemap
// results are returned in full on page zero and empty afterwards so callers
// stop paging.
func (b *baseAdapter) discoverListingURLs(ctx context.Context, params ListParams) ([]DiscoveredURL, error) {
	if b.source.SitemapURL != "" {
		urls, err := b.discoverFromSitemap(ctx)
		if err != nil {
			b.logger.Warn("Sitemap discovery failed, falling back",
				"sitemap_url", b.source.SitemapURL, "error", err)
		} else if len(urls) > 0 {
			if params.Page > 0 {
				return nil, nil
			}
			return urls, nil
		}
	}

	urls, err := b.discoverFromSearchPage(ctx, b.searchPageURL(params))
	if err != nil {
		b.logger.Warn("Search page discovery failed, falling back", "error", err)
	} else if len(urls) > 0 {
		return urls, nil
	}

	if params.Page > 0 {
		return nil, nil
	}
	return b.discoverFromCommonPaths(ctx)
}

// searchPageURL builds the paginated search URL for the source.
func (b *baseAdapter) searchPageURL(params ListParams) string {
	pageURL := b.source.SearchURL()
	if params.Page > 0 {
		sep := "?"
		if strings.Contains(pageURL, "?") {
			sep = "&"
		}
		pageURL = fmt.Sprintf("%s%spage=%d", pageURL, sep, params.Page+1)
	}
	return pageURL
}

// discoverFromSitemap downloads the sitemap and keeps listing-like URLs.
func (b *baseAdapter) discoverFromSitemap(ctx context.Context) ([]DiscoveredURL, error) {
	b.waitRateLimit(ctx)
	body, status, err := b.doRequest(ctx, b.source.SitemapURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", status)
	}

	var urlset sitemapURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}

	var discovered []DiscoveredURL
	for _, entry := range urlset.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" || !listingPathPattern.MatchString(loc) {
			continue
		}
		d := DiscoveredURL{URL: loc}
		if entry.LastMod != "" {
			d.Metadata = map[string]string{"lastmod": entry.LastMod}
		}
		discovered = append(discovered, d)
	}
	return dedupeURLs(discovered), nil
}

// discoverFromSearchPage collects listing-like links from one search or
// listing index page using a scoped colly collector.
func (b *baseAdapter) discoverFromSearchPage(ctx context.Context, pageURL string) ([]DiscoveredURL, error) {
	base, err := url.Parse(b.source.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(b.userAgent),
		colly.AllowedDomains(base.Host),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(b.fetchTimeout)

	var discovered []DiscoveredURL
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if href == "" || !listingPathPattern.MatchString(href) {
			return
		}
		discovered = append(discovered, DiscoveredURL{URL: href})
	})

	var visitErr error
	collector.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	b.waitRateLimit(ctx)
	if err := collector.Visit(pageURL); err != nil {
		return nil, err
	}
	collector.Wait()
	if visitErr != nil && len(discovered) == 0 {
		return nil, visitErr
	}
	return dedupeURLs(discovered), nil
}

// discoverFromCommonPaths probes well-known rental section paths.
func (b *baseAdapter) discoverFromCommonPaths(ctx context.Context) ([]DiscoveredURL, error) {
	for _, path := range commonRentalPaths {
		urls, err := b.discoverFromSearchPage(ctx, strings.TrimRight(b.source.BaseURL, "/")+path)
		if err != nil {
			continue
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, nil
}

// dedupeURLs removes duplicate URLs preserving first-seen order.
func dedupeURLs(in []DiscoveredURL) []DiscoveredURL {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, d := range in {
		if seen[d.URL] {
			continue
		}
		seen[d.URL] = true
		out = append(out, d)
	}
	return out
}
