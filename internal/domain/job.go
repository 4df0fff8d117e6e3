package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work a job carries.
type JobType string

// Job types. Parse, dedup, and analyze are first-class variants whose
// execution is not implemented yet; the dispatcher completes them with an
// explicit "skipped" outcome so the branch stays visible.
const (
	JobFetch   JobType = "fetch"
	JobParse   JobType = "parse"
	JobDedup   JobType = "dedup"
	JobAnalyze JobType = "analyze"
	JobRefresh JobType = "refresh"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

// Job statuses. Completed and Failed are terminal.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobRetrying  JobStatus = "retrying"
)

// DefaultMaxAttempts is the retry budget applied when a job is enqueued
// without an explicit one.
const DefaultMaxAttempts = 4

// retryDelays is the fixed backoff schedule indexed by attempt number.
// Attempts beyond the table reuse the last entry.
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// RetryDelay returns the backoff delay for the given attempt number (1-based).
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(retryDelays) {
		attempt = len(retryDelays)
	}
	return retryDelays[attempt-1]
}

// JobPayload is the free-form work description attached to a job. Every job
// carries at least a source id; crawl bounds are optional.
type JobPayload struct {
	SourceID    string `bson:"source_id" json:"sourceId"`
	MaxPages    int    `bson:"max_pages,omitempty" json:"maxPages,omitempty"`
	MaxListings int    `bson:"max_listings,omitempty" json:"maxListings,omitempty"`
}

// Job is one unit of queued work. Created by a scheduler, claimed by exactly
// one worker at a time.
type Job struct {
	ID       string     `bson:"_id" json:"jobId"`
	Type     JobType    `bson:"type" json:"type"`
	Status   JobStatus  `bson:"status" json:"status"`
	Payload  JobPayload `bson:"payload" json:"payload"`
	Priority int        `bson:"priority" json:"priority"`

	// ScheduledFor is the earliest time the job is eligible to run.
	ScheduledFor time.Time `bson:"scheduled_for" json:"scheduledFor"`

	Attempts    int        `bson:"attempts" json:"attempts"`
	MaxAttempts int        `bson:"max_attempts" json:"maxAttempts"`
	LastError   string     `bson:"last_error,omitempty" json:"lastError,omitempty"`
	NextRetryAt *time.Time `bson:"next_retry_at,omitempty" json:"nextRetryAt,omitempty"`

	Result map[string]any `bson:"result,omitempty" json:"result,omitempty"`

	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
}

// NewJob creates a pending job with a generated id.
func NewJob(jobType JobType, payload JobPayload, priority int, scheduledFor time.Time) *Job {
	now := time.Now().UTC()
	if scheduledFor.IsZero() {
		scheduledFor = now
	}
	return &Job{
		ID:           uuid.New().String(),
		Type:         jobType,
		Status:       JobPending,
		Payload:      payload,
		Priority:     priority,
		ScheduledFor: scheduledFor,
		MaxAttempts:  DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
