package domain

import "time"

// CrawlParams bounds one crawl invocation.
type CrawlParams struct {
	SourceID    string `json:"sourceId"`
	MaxPages    int    `json:"maxPages"`
	MaxListings int    `json:"maxListings"`
	// DryRun discovers and fetches but persists nothing and skips reconciliation.
	DryRun bool `json:"dryRun"`
}

// CrawlResult summarizes one crawl. Always returned, even after a fatal error,
// with whatever partial counts were accumulated.
type CrawlResult struct {
	SourceID string `json:"sourceId"`

	PagesDiscovered  int `json:"pagesDiscovered"`
	FetchFailures    int `json:"fetchFailures"`
	ParseFailures    int `json:"parseFailures"`
	ListingsFound    int `json:"listingsFound"`
	ListingsNew      int `json:"listingsNew"`
	ListingsUpdated  int `json:"listingsUpdated"`
	ListingsDelisted int `json:"listingsDelisted"`

	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// AddError appends a crawl-level error string.
func (r *CrawlResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
