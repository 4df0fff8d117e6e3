// Package job contains the queue worker and the cron scheduler that keeps
// every enabled source refreshed.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/rentwatch/rentwatch/internal/crawl"
	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/storage"
)

// JobOutcome reports the final state of one executed job.
type JobOutcome struct {
	JobID  string           `json:"jobId"`
	Type   domain.JobType   `json:"type"`
	Status domain.JobStatus `json:"status"`
}

// ProcessSummary reports one ProcessJobs invocation.
type ProcessSummary struct {
	Claimed   int          `json:"claimed"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Jobs      []JobOutcome `json:"jobs,omitempty"`
}

// Processor claims jobs from the queue and dispatches them by type.
type Processor struct {
	queue   storage.JobQueue
	crawler crawl.Interface
	logger  logger.Interface
}

// NewProcessor creates a job processor.
func NewProcessor(queue storage.JobQueue, crawler crawl.Interface, log logger.Interface) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{queue: queue, crawler: crawler, logger: log}
}

// ProcessJobs claims and executes up to maxJobs eligible jobs, stopping early
// when the queue drains or the context is cancelled. Jobs run sequentially;
// concurrency toward any one source stays bounded by the claim itself.
func (p *Processor) ProcessJobs(ctx context.Context, maxJobs int) (*ProcessSummary, error) {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	summary := &ProcessSummary{}

	for i := 0; i < maxJobs; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		job, err := p.queue.ClaimNext(ctx)
		if err != nil {
			return summary, fmt.Errorf("failed to claim job: %w", err)
		}
		if job == nil {
			break
		}
		summary.Claimed++
		p.execute(ctx, job, summary)
	}

	return summary, nil
}

// execute runs one claimed job and settles it in the queue.
func (p *Processor) execute(ctx context.Context, job *domain.Job, summary *ProcessSummary) {
	log := p.logger.WithSource(job.Payload.SourceID).With("job_id", job.ID, "type", job.Type)
	log.Info("Job started", "attempt", job.Attempts+1, "max_attempts", job.MaxAttempts)
	start := time.Now()

	switch job.Type {
	case domain.JobFetch, domain.JobRefresh:
		result, err := p.crawler.Run(ctx, domain.CrawlParams{
			SourceID:    job.Payload.SourceID,
			MaxPages:    job.Payload.MaxPages,
			MaxListings: job.Payload.MaxListings,
		})
		if err != nil {
			p.settle(ctx, job, nil, err, summary, log)
			return
		}
		p.settle(ctx, job, map[string]any{
			"pages_discovered":  result.PagesDiscovered,
			"listings_found":    result.ListingsFound,
			"listings_new":      result.ListingsNew,
			"listings_updated":  result.ListingsUpdated,
			"listings_delisted": result.ListingsDelisted,
			"fetch_failures":    result.FetchFailures,
			"duration_ms":       time.Since(start).Milliseconds(),
		}, nil, summary, log)

	case domain.JobParse, domain.JobDedup, domain.JobAnalyze:
		// These job types are queued but have no executor yet. Completing
		// them with an explicit skipped result keeps the queue honest
		// instead of silently dropping or endlessly retrying them.
		summary.Skipped++
		summary.Jobs = append(summary.Jobs, JobOutcome{JobID: job.ID, Type: job.Type, Status: domain.JobCompleted})
		log.Info("Job skipped", "reason", "no executor for job type")
		if err := p.queue.Complete(ctx, job.ID, map[string]any{"skipped": true, "reason": "no executor for job type"}); err != nil {
			log.Error("Failed to record job completion", "error", err)
		}

	default:
		p.settle(ctx, job, nil, fmt.Errorf("unknown job type %q", job.Type), summary, log)
	}
}

// settle completes or fails the job and updates the summary counters.
func (p *Processor) settle(
	ctx context.Context,
	job *domain.Job,
	result map[string]any,
	jobErr error,
	summary *ProcessSummary,
	log logger.Interface,
) {
	if jobErr != nil {
		summary.Failed++
		// Mirrors the queue's backoff decision so the outcome reports the
		// status the job landed in.
		status := domain.JobRetrying
		if job.Attempts+1 >= job.MaxAttempts {
			status = domain.JobFailed
		}
		summary.Jobs = append(summary.Jobs, JobOutcome{JobID: job.ID, Type: job.Type, Status: status})
		log.Warn("Job failed", "error", jobErr)
		if err := p.queue.Fail(ctx, job.ID, jobErr); err != nil {
			log.Error("Failed to record job failure", "error", err)
		}
		return
	}

	summary.Completed++
	summary.Jobs = append(summary.Jobs, JobOutcome{JobID: job.ID, Type: job.Type, Status: domain.JobCompleted})
	log.Info("Job completed")
	if err := p.queue.Complete(ctx, job.ID, result); err != nil {
		log.Error("Failed to record job completion", "error", err)
	}
}
