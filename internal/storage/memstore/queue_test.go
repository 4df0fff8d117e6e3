package memstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/storage/memstore"
)

func TestClaimNext_PriorityOrder(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	low := domain.NewJob(domain.JobFetch, domain.JobPayload{SourceID: "low"}, 1, time.Time{})
	high := domain.NewJob(domain.JobFetch, domain.JobPayload{SourceID: "high"}, 9, time.Time{})
	require.NoError(t, queue.Enqueue(ctx, low))
	require.NoError(t, queue.Enqueue(ctx, high))

	first, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "high", first.Payload.SourceID)
	assert.Equal(t, domain.JobRunning, first.Status)
	require.NotNil(t, first.StartedAt)

	second, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "low", second.Payload.SourceID)

	// Nothing left to claim.
	third, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestClaimNext_RespectsSchedule(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	future := domain.NewJob(domain.JobFetch, domain.JobPayload{SourceID: "src"}, 5, time.Now().Add(time.Hour))
	require.NoError(t, queue.Enqueue(ctx, future))

	claimed, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimNext_ExactlyOnce(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	const jobCount = 50
	for i := 0; i < jobCount; i++ {
		job := domain.NewJob(domain.JobFetch, domain.JobPayload{SourceID: fmt.Sprintf("src-%d", i)}, i%5, time.Time{})
		require.NoError(t, queue.Enqueue(ctx, job))
	}

	var mu sync.Mutex
	claimed := make(map[string]int)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := queue.ClaimNext(ctx)
				if err != nil || job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobCount)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestFail_RetryBackoff(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	job := domain.NewJob(domain.JobFetch, domain.JobPayload{SourceID: "src"}, 5, time.Time{})
	require.NoError(t, queue.Enqueue(ctx, job))

	claimed, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	before := time.Now().UTC()
	require.NoError(t, queue.Fail(ctx, claimed.ID, errors.New("fetch timed out")))

	stored := queue.Get(claimed.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.JobRetrying, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "fetch timed out", stored.LastError)
	require.NotNil(t, stored.NextRetryAt)
	// First retry follows the one-minute backoff step.
	assert.False(t, stored.ScheduledFor.Before(before.Add(domain.RetryDelay(1))))

	// Not eligible again until the retry time passes.
	next, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestFail_TerminalAtBudget(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	job := domain.NewJob(domain.JobFetch, domain.JobPayload{SourceID: "src"}, 5, time.Time{})
	job.Attempts = job.MaxAttempts - 1
	require.NoError(t, queue.Enqueue(ctx, job))

	require.NoError(t, queue.Fail(ctx, job.ID, errors.New("still broken")))

	stored := queue.Get(job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.JobFailed, stored.Status)
	assert.True(t, stored.Terminal())
	require.NotNil(t, stored.CompletedAt)
}

func TestComplete(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	job := domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: "src"}, 5, time.Time{})
	require.NoError(t, queue.Enqueue(ctx, job))

	require.NoError(t, queue.Complete(ctx, job.ID, map[string]any{"listings_found": 12}))

	stored := queue.Get(job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.JobCompleted, stored.Status)
	assert.Equal(t, 12, stored.Result["listings_found"])
	require.NotNil(t, stored.CompletedAt)
}

func TestHasPending(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	job := domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: "src"}, 5, time.Time{})
	require.NoError(t, queue.Enqueue(ctx, job))

	pending, err := queue.HasPending(ctx, domain.JobRefresh, "src")
	require.NoError(t, err)
	assert.True(t, pending)

	// A running job still counts as in flight.
	_, err = queue.ClaimNext(ctx)
	require.NoError(t, err)
	pending, err = queue.HasPending(ctx, domain.JobRefresh, "src")
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, queue.Complete(ctx, job.ID, nil))
	pending, err = queue.HasPending(ctx, domain.JobRefresh, "src")
	require.NoError(t, err)
	assert.False(t, pending)

	pending, err = queue.HasPending(ctx, domain.JobFetch, "other")
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestLastCompleted(t *testing.T) {
	t.Parallel()

	queue := memstore.NewQueue()
	ctx := context.Background()

	last, err := queue.LastCompleted(ctx, domain.JobRefresh, "src")
	require.NoError(t, err)
	assert.Nil(t, last)

	first := domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: "src"}, 5, time.Time{})
	second := domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: "src"}, 5, time.Time{})
	require.NoError(t, queue.Enqueue(ctx, first))
	require.NoError(t, queue.Enqueue(ctx, second))
	require.NoError(t, queue.Complete(ctx, first.ID, nil))
	require.NoError(t, queue.Complete(ctx, second.ID, nil))

	earlier := time.Now().UTC().Add(-2 * time.Hour)
	queue.SetCompletedAt(first.ID, earlier)

	last, err = queue.LastCompleted(ctx, domain.JobRefresh, "src")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.After(earlier))

	// Other types and sources do not count.
	last, err = queue.LastCompleted(ctx, domain.JobFetch, "src")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestHealth_RecordMetric(t *testing.T) {
	t.Parallel()

	health := memstore.NewHealth()
	ctx := context.Background()

	require.NoError(t, health.RecordMetric(ctx, "src", domain.HealthDelta{
		FetchAttempts: 1,
		FetchDuration: 250 * time.Millisecond,
	}))
	require.NoError(t, health.RecordMetric(ctx, "src", domain.HealthDelta{
		FetchAttempts: 1,
		FetchFailures: 1,
		FetchDuration: 750 * time.Millisecond,
		Error:         "503 from upstream",
	}))

	row, err := health.Today(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, 2, row.FetchAttempts)
	assert.Equal(t, 1, row.FetchFailures)
	assert.Equal(t, int64(1000), row.TotalFetchMillis)
	assert.Equal(t, 2, row.FetchSamples)
	assert.Equal(t, int64(500), row.AvgFetchMillis())
	assert.Equal(t, "503 from upstream", row.LastError)
	require.NotNil(t, row.LastErrorAt)
}

func TestHealth_Today_ZeroRow(t *testing.T) {
	t.Parallel()

	health := memstore.NewHealth()

	row, err := health.Today(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, "never-seen", row.SourceID)
	assert.Zero(t, row.FetchAttempts)
}

func TestHealth_SeriesAndLatest(t *testing.T) {
	t.Parallel()

	health := memstore.NewHealth()
	ctx := context.Background()

	require.NoError(t, health.RecordMetric(ctx, "alpha", domain.HealthDelta{ListingsFound: 3}))
	require.NoError(t, health.RecordMetric(ctx, "beta", domain.HealthDelta{ListingsFound: 7}))

	series, err := health.Series(ctx, 7)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "alpha", series[0].SourceID)
	assert.Equal(t, "beta", series[1].SourceID)

	latest, err := health.Latest(ctx)
	require.NoError(t, err)
	require.Contains(t, latest, "alpha")
	require.Contains(t, latest, "beta")
	assert.Equal(t, 7, latest["beta"].ListingsFound)
}
