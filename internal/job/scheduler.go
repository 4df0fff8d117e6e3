package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/sources"
	"github.com/rentwatch/rentwatch/internal/storage"
)

// Scheduler enqueues refresh jobs for enabled sources on a cron cadence.
// It only enqueues: execution happens wherever ProcessJobs is driven.
type Scheduler struct {
	cron     *cron.Cron
	registry sources.Interface
	queue    storage.JobQueue
	logger   logger.Interface
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(registry sources.Interface, queue storage.JobQueue, log logger.Interface) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		registry: registry,
		queue:    queue,
		logger:   log.WithComponent("scheduler"),
	}
}

// Start registers the cron entry and starts the ticker.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", "spec", spec)
	return nil
}

// Stop stops the ticker and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// tick enqueues one refresh job per enabled source that has no unfinished
// refresh already queued.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.EnqueueDue(ctx); err != nil {
		s.logger.Error("Scheduler tick failed", "error", err)
	}
}

// EnqueueDue walks the enabled sources and enqueues missing refresh jobs.
// A source is due when no refresh is in flight and its configured refresh
// interval has elapsed since the last completed one. Priority follows the
// source's configured priority so higher-value sources are claimed first
// when the queue backs up.
func (s *Scheduler) EnqueueDue(ctx context.Context) error {
	enqueued := 0
	now := time.Now().UTC()
	for _, source := range s.registry.Enabled() {
		pending, err := s.queue.HasPending(ctx, domain.JobRefresh, source.ID)
		if err != nil {
			return fmt.Errorf("failed to check pending jobs for %s: %w", source.ID, err)
		}
		if pending {
			continue
		}

		if interval := source.Scrape.RefreshInterval; interval > 0 {
			lastCompleted, err := s.queue.LastCompleted(ctx, domain.JobRefresh, source.ID)
			if err != nil {
				return fmt.Errorf("failed to check last refresh for %s: %w", source.ID, err)
			}
			if lastCompleted != nil && now.Sub(*lastCompleted) < interval {
				continue
			}
		}

		job := domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: source.ID}, source.Priority, time.Time{})
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue refresh for %s: %w", source.ID, err)
		}
		enqueued++
		s.logger.Debug("Refresh enqueued", "source", source.ID, "job_id", job.ID)
	}

	if enqueued > 0 {
		s.logger.Info("Refresh jobs enqueued", "count", enqueued)
	}
	return nil
}
