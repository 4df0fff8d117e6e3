package api

import (
	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/job"
)

// ScrapeRequest triggers a synchronous crawl of one source. The filter
// fields narrow the listing sample returned, not the crawl itself.
type ScrapeRequest struct {
	SourceID    string   `json:"sourceId" binding:"required"`
	MaxPages    int      `json:"maxPages"`
	MaxListings int      `json:"maxListings"`
	DryRun      bool     `json:"dryRun"`
	Borough     string   `json:"borough"`
	MinPrice    float64  `json:"minPrice"`
	MaxPrice    float64  `json:"maxPrice"`
	Beds        *float64 `json:"beds"`
}

// ScrapeResponse reports the crawl outcome plus a truncated listing sample.
type ScrapeResponse struct {
	Result  *domain.CrawlResult         `json:"result"`
	Sample  []*domain.NormalizedListing `json:"sample"`
	Sampled int                         `json:"sampled"`
}

// ProcessJobsResponse reports one queue-draining invocation.
type ProcessJobsResponse struct {
	Summary *job.ProcessSummary `json:"summary"`
}

// JobsResponse is the queue inspection payload.
type JobsResponse struct {
	Depth  map[domain.JobStatus]int64 `json:"depth"`
	Recent []*domain.Job              `json:"recent"`
}

// SourceStats is the per-source slice of the stats payload.
type SourceStats struct {
	SourceID      string             `json:"sourceId"`
	Name          string             `json:"name"`
	Enabled       bool               `json:"enabled"`
	State         domain.HealthState `json:"state"`
	FailureRate   float64            `json:"failureRate"`
	Listings      int64              `json:"listings"`
	AvgFetchMs    int64              `json:"avgFetchMs"`
	LastError     string             `json:"lastError,omitempty"`
	ListingsFound int                `json:"listingsFound"`
}

// StatsResponse is the aggregate statistics payload.
type StatsResponse struct {
	ListingsByStatus map[domain.ListingStatus]int64 `json:"listingsByStatus"`
	TotalListings    int64                          `json:"totalListings"`
	DuplicateCount   int64                          `json:"duplicateCount"`
	DedupRate        float64                        `json:"dedupRate"`
	Jobs             map[domain.JobStatus]int64     `json:"jobs"`
	Sources          []SourceStats                  `json:"sources"`
	DailySeries      []*domain.SourceHealth         `json:"dailySeries"`
}

// UnanalyzedResponse lists listings awaiting image analysis.
type UnanalyzedResponse struct {
	Listings []*domain.NormalizedListing `json:"listings"`
	Count    int                         `json:"count"`
}
