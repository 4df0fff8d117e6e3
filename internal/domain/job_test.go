package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/domain"
)

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Minute},
		{1, 1 * time.Minute},
		{2, 5 * time.Minute},
		{3, 15 * time.Minute},
		{4, 30 * time.Minute},
		{5, 30 * time.Minute},
		{100, 30 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, domain.RetryDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	job := domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: "craigslist"}, 5, time.Time{})

	require.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, domain.JobRefresh, job.Type)
	assert.Equal(t, 5, job.Priority)
	assert.Equal(t, domain.DefaultMaxAttempts, job.MaxAttempts)
	assert.False(t, job.ScheduledFor.IsZero(), "zero scheduledFor should default to now")
	assert.False(t, job.Terminal())
}

func TestJobTerminal(t *testing.T) {
	t.Parallel()

	job := domain.NewJob(domain.JobFetch, domain.JobPayload{SourceID: "s"}, 0, time.Time{})

	for status, terminal := range map[domain.JobStatus]bool{
		domain.JobPending:   false,
		domain.JobRunning:   false,
		domain.JobRetrying:  false,
		domain.JobCompleted: true,
		domain.JobFailed:    true,
	} {
		job.Status = status
		assert.Equal(t, terminal, job.Terminal(), "status %s", status)
	}
}
