package domain

import "time"

// HealthState classifies a source's recent crawl health.
type HealthState string

// Health states.
const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthFailing  HealthState = "failing"
	HealthDisabled HealthState = "disabled"
)

// Failure-rate thresholds for health classification.
const (
	failingRate  = 0.5
	degradedRate = 0.2
)

// HealthDelta is a partial set of counter increments recorded during a crawl.
// Missing fields are treated as zero.
type HealthDelta struct {
	FetchAttempts  int `bson:"fetch_attempts,omitempty"`
	FetchSuccesses int `bson:"fetch_successes,omitempty"`
	FetchFailures  int `bson:"fetch_failures,omitempty"`
	ParseAttempts  int `bson:"parse_attempts,omitempty"`
	ParseSuccesses int `bson:"parse_successes,omitempty"`
	ParseFailures  int `bson:"parse_failures,omitempty"`

	ListingsFound    int `bson:"listings_found,omitempty"`
	ListingsNew      int `bson:"listings_new,omitempty"`
	ListingsUpdated  int `bson:"listings_updated,omitempty"`
	ListingsDelisted int `bson:"listings_delisted,omitempty"`
	DuplicatesFound  int `bson:"duplicates_found,omitempty"`

	// FetchDuration accumulates wall-clock fetch time for rolling averages.
	FetchDuration time.Duration `bson:"-"`

	// Error, when non-empty, overwrites the row's last-error fields.
	Error string `bson:"-"`
}

// SourceHealth is one row per (source, day) of accumulated crawl counters.
// Upserted incrementally throughout a crawl, never overwritten wholesale.
type SourceHealth struct {
	ID       string `bson:"_id,omitempty" json:"-"`
	SourceID string `bson:"source_id" json:"sourceId"`
	// Date is the UTC day bucket in YYYY-MM-DD form.
	Date string `bson:"date" json:"date"`

	FetchAttempts  int `bson:"fetch_attempts" json:"fetchAttempts"`
	FetchSuccesses int `bson:"fetch_successes" json:"fetchSuccesses"`
	FetchFailures  int `bson:"fetch_failures" json:"fetchFailures"`
	ParseAttempts  int `bson:"parse_attempts" json:"parseAttempts"`
	ParseSuccesses int `bson:"parse_successes" json:"parseSuccesses"`
	ParseFailures  int `bson:"parse_failures" json:"parseFailures"`

	ListingsFound    int `bson:"listings_found" json:"listingsFound"`
	ListingsNew      int `bson:"listings_new" json:"listingsNew"`
	ListingsUpdated  int `bson:"listings_updated" json:"listingsUpdated"`
	ListingsDelisted int `bson:"listings_delisted" json:"listingsDelisted"`
	DuplicatesFound  int `bson:"duplicates_found" json:"duplicatesFound"`

	// TotalFetchMillis and FetchSamples back the rolling average fetch time.
	TotalFetchMillis int64 `bson:"total_fetch_millis" json:"-"`
	FetchSamples     int   `bson:"fetch_samples" json:"-"`

	LastError   string     `bson:"last_error,omitempty" json:"lastError,omitempty"`
	LastErrorAt *time.Time `bson:"last_error_at,omitempty" json:"lastErrorAt,omitempty"`

	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// AvgFetchMillis returns the rolling average fetch time in milliseconds.
func (h *SourceHealth) AvgFetchMillis() int64 {
	if h.FetchSamples == 0 {
		return 0
	}
	return h.TotalFetchMillis / int64(h.FetchSamples)
}

// FailureRate returns fetch failures over attempts, guarding division by zero.
func (h *SourceHealth) FailureRate() float64 {
	attempts := h.FetchAttempts
	if attempts < 1 {
		attempts = 1
	}
	return float64(h.FetchFailures) / float64(attempts)
}

// Classify derives the health state for a source from its counters.
// Disabled sources are reported as disabled regardless of rate.
func (h *SourceHealth) Classify(enabled bool) HealthState {
	if !enabled {
		return HealthDisabled
	}
	rate := h.FailureRate()
	switch {
	case rate > failingRate:
		return HealthFailing
	case rate > degradedRate:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// HealthDate formats a time as the UTC day bucket used by SourceHealth.
func HealthDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
