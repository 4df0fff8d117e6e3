package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rentwatch/rentwatch/internal/domain"
)

func TestFailureRate(t *testing.T) {
	t.Parallel()

	h := &domain.SourceHealth{}
	assert.Equal(t, 0.0, h.FailureRate(), "zero attempts must not divide by zero")

	h = &domain.SourceHealth{FetchAttempts: 10, FetchFailures: 3}
	assert.InDelta(t, 0.3, h.FailureRate(), 1e-9)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		attempts int
		failures int
		enabled  bool
		expected domain.HealthState
	}{
		{"disabled wins", 10, 10, false, domain.HealthDisabled},
		{"no traffic is healthy", 0, 0, true, domain.HealthHealthy},
		{"low failure rate", 10, 1, true, domain.HealthHealthy},
		{"boundary 20% is healthy", 10, 2, true, domain.HealthHealthy},
		{"above 20% is degraded", 10, 3, true, domain.HealthDegraded},
		{"boundary 50% is degraded", 10, 5, true, domain.HealthDegraded},
		{"above 50% is failing", 10, 6, true, domain.HealthFailing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &domain.SourceHealth{
				FetchAttempts: tt.attempts,
				FetchFailures: tt.failures,
			}
			assert.Equal(t, tt.expected, h.Classify(tt.enabled))
		})
	}
}

func TestAvgFetchMillis(t *testing.T) {
	t.Parallel()

	h := &domain.SourceHealth{}
	assert.Equal(t, int64(0), h.AvgFetchMillis())

	h = &domain.SourceHealth{TotalFetchMillis: 900, FetchSamples: 3}
	assert.Equal(t, int64(300), h.AvgFetchMillis())
}

func TestHealthDate(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*3600)
	// 11pm EST is already the next day in UTC.
	at := time.Date(2026, 8, 29, 23, 0, 0, 0, est)
	assert.Equal(t, "2026-08-30", domain.HealthDate(at))
}
