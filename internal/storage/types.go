// Package storage provides the MongoDB persistence layer: listings with
// upsert-with-history semantics, the raw page audit trail, the durable job
// queue, and per-source health counters.
package storage

import (
	"context"
	"time"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// UpsertOutcome reports what an upsert did to the store.
type UpsertOutcome struct {
	// Created is true when a new listing row was inserted.
	Created bool
	// PriceChanged is true when the price differed and history was appended.
	PriceChanged bool
	// RelistDetected is true when a delisted listing came back active.
	RelistDetected bool
	// Listing is the stored record after the upsert.
	Listing *domain.NormalizedListing
}

// DuplicateFilterOptions tunes the candidate-duplicate query. The thresholds
// are heuristics with no specified accuracy target, so they are options
// rather than constants.
type DuplicateFilterOptions struct {
	// PriceTolerance is the allowed relative price difference (0.05 = ±5%).
	PriceTolerance float64
}

// DefaultPriceTolerance is the candidate filter's default price window.
const DefaultPriceTolerance = 0.05

// ListingFilter narrows listing queries for the API surface.
type ListingFilter struct {
	SourceID string
	Borough  string
	MinPrice float64
	MaxPrice float64
	Beds     *float64
	Status   domain.ListingStatus
	Limit    int64
}

// ListingStore is the listing persistence contract.
type ListingStore interface {
	// Upsert stores a scraped listing under its (sourceID, sourceURL) natural
	// key, preserving identity and appending price history on change.
	Upsert(ctx context.Context, scraped *domain.NormalizedListing) (*UpsertOutcome, error)
	// MarkListingsDelisted flips active listings of the source that are absent
	// from activeURLs to delisted, returning how many were flipped.
	MarkListingsDelisted(ctx context.Context, sourceID string, activeURLs []string) (int64, error)
	// FindPotentialDuplicates returns candidate duplicates of the listing.
	FindPotentialDuplicates(ctx context.Context, listing *domain.NormalizedListing, opts DuplicateFilterOptions) ([]*domain.NormalizedListing, error)
	// Find returns listings matching the filter.
	Find(ctx context.Context, filter ListingFilter) ([]*domain.NormalizedListing, error)
	// CountByStatus returns listing counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.ListingStatus]int64, error)
	// CountBySource returns listing counts grouped by source.
	CountBySource(ctx context.Context) (map[string]int64, error)
	// CountDuplicates returns how many listings are flagged duplicate.
	CountDuplicates(ctx context.Context) (int64, error)
	// FindUnanalyzed returns listings without a stored image analysis.
	FindUnanalyzed(ctx context.Context, sourceID string, limit int64) ([]*domain.NormalizedListing, error)
}

// PageStore is the raw page audit-trail contract.
type PageStore interface {
	// Insert records one fetch attempt.
	Insert(ctx context.Context, page *domain.RawPage) error
	// SetParseStatus updates the parse outcome of a stored page.
	SetParseStatus(ctx context.Context, pageID string, status domain.ParseStatus, errorMessage string) error
}

// JobQueue is the durable queue contract. ClaimNext is the concurrency-safety
// guarantee: two simultaneous callers never receive the same job.
type JobQueue interface {
	// Enqueue inserts a pending job.
	Enqueue(ctx context.Context, job *domain.Job) error
	// ClaimNext atomically claims the highest-priority eligible job, or
	// returns nil when none is eligible.
	ClaimNext(ctx context.Context) (*domain.Job, error)
	// Complete marks a job completed with a result payload.
	Complete(ctx context.Context, jobID string, result map[string]any) error
	// Fail records a failure, scheduling a retry or terminally failing.
	Fail(ctx context.Context, jobID string, jobErr error) error
	// CountByStatus returns queue depth grouped by status.
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error)
	// Recent returns the most recently updated jobs.
	Recent(ctx context.Context, limit int64) ([]*domain.Job, error)
	// HasPending reports whether a pending or retrying job of the given type
	// already exists for the source.
	HasPending(ctx context.Context, jobType domain.JobType, sourceID string) (bool, error)
	// LastCompleted returns when a job of the given type last completed for
	// the source, or nil when none ever has.
	LastCompleted(ctx context.Context, jobType domain.JobType, sourceID string) (*time.Time, error)
}

// HealthStore is the per-source, per-day telemetry contract.
type HealthStore interface {
	// RecordMetric increments the (sourceID, today) counters by the delta.
	RecordMetric(ctx context.Context, sourceID string, delta domain.HealthDelta) error
	// Today returns today's row for the source, or a zero row.
	Today(ctx context.Context, sourceID string) (*domain.SourceHealth, error)
	// Series returns daily rows for all sources covering the trailing window.
	Series(ctx context.Context, days int) ([]*domain.SourceHealth, error)
	// Latest returns the most recent row per source.
	Latest(ctx context.Context) (map[string]*domain.SourceHealth, error)
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
