package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/storage"
)

// Queue is an in-memory JobQueue with the same claim and backoff semantics
// as the MongoDB queue. The claim runs under one mutex, so concurrent
// claimers observe the same exactly-once guarantee.
type Queue struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// Ensure Queue implements JobQueue
var _ storage.JobQueue = (*Queue)(nil)

// NewQueue creates an empty in-memory queue.
func NewQueue() *Queue {
	return &Queue{jobs: make(map[string]*domain.Job)}
}

// Enqueue inserts a pending job.
func (q *Queue) Enqueue(_ context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	copied := *job
	q.jobs[job.ID] = &copied
	return nil
}

// ClaimNext atomically claims the highest-priority, earliest-eligible
// pending or retrying job. Returns nil, nil when none is eligible.
func (q *Queue) ClaimNext(context.Context) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	var best *domain.Job
	for _, job := range q.jobs {
		if job.Status != domain.JobPending && job.Status != domain.JobRetrying {
			continue
		}
		if job.ScheduledFor.After(now) {
			continue
		}
		if best == nil ||
			job.Priority > best.Priority ||
			(job.Priority == best.Priority && job.ScheduledFor.Before(best.ScheduledFor)) {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}

	best.Status = domain.JobRunning
	startedAt := now
	best.StartedAt = &startedAt
	best.UpdatedAt = now
	claimed := *best
	return &claimed, nil
}

// Complete marks a job completed with a result payload.
func (q *Queue) Complete(_ context.Context, jobID string, result map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = domain.JobCompleted
	job.Result = result
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

// Fail increments attempts and schedules a retry on the fixed backoff table,
// or terminally fails the job at the attempt budget.
func (q *Queue) Fail(_ context.Context, jobID string, jobErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	job.Attempts++
	job.LastError = jobErr.Error()
	job.UpdatedAt = now
	if job.Attempts < job.MaxAttempts {
		retryAt := now.Add(domain.RetryDelay(job.Attempts))
		job.Status = domain.JobRetrying
		job.ScheduledFor = retryAt
		job.NextRetryAt = &retryAt
	} else {
		job.Status = domain.JobFailed
		job.CompletedAt = &now
	}
	return nil
}

// CountByStatus returns queue depth grouped by status.
func (q *Queue) CountByStatus(context.Context) (map[domain.JobStatus]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[domain.JobStatus]int64)
	for _, job := range q.jobs {
		out[job.Status]++
	}
	return out, nil
}

// Recent returns the most recently updated jobs.
func (q *Queue) Recent(_ context.Context, limit int64) ([]*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		copied := *job
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HasPending reports whether an unfinished job of the given type exists for
// the source.
func (q *Queue) HasPending(_ context.Context, jobType domain.JobType, sourceID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.Type != jobType || job.Payload.SourceID != sourceID {
			continue
		}
		switch job.Status {
		case domain.JobPending, domain.JobRetrying, domain.JobRunning:
			return true, nil
		}
	}
	return false, nil
}

// LastCompleted returns the most recent completion time for the type and
// source, or nil when no such job has completed.
func (q *Queue) LastCompleted(_ context.Context, jobType domain.JobType, sourceID string) (*time.Time, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var latest *time.Time
	for _, job := range q.jobs {
		if job.Type != jobType || job.Payload.SourceID != sourceID || job.Status != domain.JobCompleted {
			continue
		}
		if job.CompletedAt == nil {
			continue
		}
		if latest == nil || job.CompletedAt.After(*latest) {
			completedAt := *job.CompletedAt
			latest = &completedAt
		}
	}
	return latest, nil
}

// SetCompletedAt backdates a job's completion time, for test setups.
func (q *Queue) SetCompletedAt(jobID string, completedAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.jobs[jobID]; ok {
		job.CompletedAt = &completedAt
	}
}

// Get returns a stored job by id, for test assertions.
func (q *Queue) Get(jobID string) *domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

// Health is an in-memory HealthStore.
type Health struct {
	mu   sync.Mutex
	rows map[string]*domain.SourceHealth
}

// Ensure Health implements HealthStore
var _ storage.HealthStore = (*Health)(nil)

// NewHealth creates an empty in-memory health store.
func NewHealth() *Health {
	return &Health{rows: make(map[string]*domain.SourceHealth)}
}

// RecordMetric increments today's counters for the source by the delta.
func (h *Health) RecordMetric(_ context.Context, sourceID string, delta domain.HealthDelta) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UTC()
	date := domain.HealthDate(now)
	key := sourceID + "|" + date
	row, ok := h.rows[key]
	if !ok {
		row = &domain.SourceHealth{SourceID: sourceID, Date: date}
		h.rows[key] = row
	}

	row.FetchAttempts += delta.FetchAttempts
	row.FetchSuccesses += delta.FetchSuccesses
	row.FetchFailures += delta.FetchFailures
	row.ParseAttempts += delta.ParseAttempts
	row.ParseSuccesses += delta.ParseSuccesses
	row.ParseFailures += delta.ParseFailures
	row.ListingsFound += delta.ListingsFound
	row.ListingsNew += delta.ListingsNew
	row.ListingsUpdated += delta.ListingsUpdated
	row.ListingsDelisted += delta.ListingsDelisted
	row.DuplicatesFound += delta.DuplicatesFound
	if delta.FetchDuration > 0 {
		row.TotalFetchMillis += delta.FetchDuration.Milliseconds()
		row.FetchSamples++
	}
	if delta.Error != "" {
		row.LastError = delta.Error
		errorAt := now
		row.LastErrorAt = &errorAt
	}
	row.UpdatedAt = now
	return nil
}

// Today returns today's row for the source, or a zero row.
func (h *Health) Today(_ context.Context, sourceID string) (*domain.SourceHealth, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	date := domain.HealthDate(time.Now())
	if row, ok := h.rows[sourceID+"|"+date]; ok {
		copied := *row
		return &copied, nil
	}
	return &domain.SourceHealth{SourceID: sourceID, Date: date}, nil
}

// Series returns daily rows covering the trailing window.
func (h *Health) Series(_ context.Context, days int) ([]*domain.SourceHealth, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if days <= 0 {
		days = 7
	}
	since := domain.HealthDate(time.Now().AddDate(0, 0, -days))
	var out []*domain.SourceHealth
	for _, row := range h.rows {
		if row.Date >= since {
			copied := *row
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

// Latest returns the most recent row per source.
func (h *Health) Latest(context.Context) (map[string]*domain.SourceHealth, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]*domain.SourceHealth)
	for _, row := range h.rows {
		current, ok := out[row.SourceID]
		if !ok || row.Date > current.Date {
			copied := *row
			out[row.SourceID] = &copied
		}
	}
	return out, nil
}
