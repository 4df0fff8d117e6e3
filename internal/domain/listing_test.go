package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/domain"
)

func scrapedListing(price float64) *domain.NormalizedListing {
	return &domain.NormalizedListing{
		SourceID:  "craigslist",
		SourceURL: "https://example.com/listing/1",
		Title:     "Sunny 2BR",
		Price:     price,
		Status:    domain.ListingActive,
	}
}

func TestNewFromScrape(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	fresh := domain.NewFromScrape(scrapedListing(2500), now)

	require.NotEmpty(t, fresh.ListingID)
	assert.Equal(t, domain.ListingActive, fresh.Status)
	assert.Equal(t, now, fresh.FirstSeenAt)
	assert.Equal(t, now, fresh.LastSeenAt)
	assert.Empty(t, fresh.PriceHistory)
	assert.False(t, fresh.Dedup.IsDuplicate)
}

func TestNewFromScrape_DefaultsStatus(t *testing.T) {
	t.Parallel()

	scraped := scrapedListing(2500)
	scraped.Status = ""

	fresh := domain.NewFromScrape(scraped, time.Now().UTC())
	assert.Equal(t, domain.ListingActive, fresh.Status)
}

func TestApplyScrape_PreservesIdentity(t *testing.T) {
	t.Parallel()

	firstSeen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := domain.NewFromScrape(scrapedListing(2500), firstSeen)

	scraped := scrapedListing(2500)
	scraped.Title = "Sunny 2BR, renovated"
	now := firstSeen.Add(24 * time.Hour)

	merged := domain.ApplyScrape(existing, scraped, now)

	assert.Equal(t, existing.ListingID, merged.ListingID)
	assert.Equal(t, firstSeen, merged.FirstSeenAt)
	assert.Equal(t, now, merged.LastSeenAt)
	assert.Equal(t, "Sunny 2BR, renovated", merged.Title)
	assert.Empty(t, merged.PriceHistory, "unchanged price should not append history")
}

func TestApplyScrape_PriceChangeAppendsHistory(t *testing.T) {
	t.Parallel()

	firstSeen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := domain.NewFromScrape(scrapedListing(2500), firstSeen)

	now := firstSeen.Add(24 * time.Hour)
	merged := domain.ApplyScrape(existing, scrapedListing(2400), now)

	require.Len(t, merged.PriceHistory, 1)
	assert.Equal(t, 2500.0, merged.PriceHistory[0].Price)
	assert.Equal(t, existing.LastSeenAt, merged.PriceHistory[0].Date)
	assert.Equal(t, 2400.0, merged.Price)

	// A second change appends again; the history is append-only.
	later := now.Add(24 * time.Hour)
	merged2 := domain.ApplyScrape(merged, scrapedListing(2450), later)
	require.Len(t, merged2.PriceHistory, 2)
	assert.Equal(t, 2400.0, merged2.PriceHistory[1].Price)
}

func TestApplyScrape_RelistDetection(t *testing.T) {
	t.Parallel()

	firstSeen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := domain.NewFromScrape(scrapedListing(2500), firstSeen)
	existing.Status = domain.ListingDelisted
	delistedAt := firstSeen.Add(48 * time.Hour)
	existing.DelistedAt = &delistedAt

	now := firstSeen.Add(96 * time.Hour)
	merged := domain.ApplyScrape(existing, scrapedListing(2500), now)

	assert.Equal(t, domain.ListingActive, merged.Status)
	assert.True(t, merged.RelistDetected)
	assert.Nil(t, merged.DelistedAt)
}

func TestApplyScrape_KeepsDedupAndAnalysis(t *testing.T) {
	t.Parallel()

	firstSeen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := domain.NewFromScrape(scrapedListing(2500), firstSeen)
	existing.Dedup = domain.Dedup{IsDuplicate: true, DuplicateOf: "other-id", Confidence: 0.9}
	existing.StoredImageAnalysis = map[string]any{"rooms": 3}

	merged := domain.ApplyScrape(existing, scrapedListing(2500), firstSeen.Add(time.Hour))

	assert.True(t, merged.Dedup.IsDuplicate)
	assert.Equal(t, "other-id", merged.Dedup.DuplicateOf)
	assert.Equal(t, map[string]any{"rooms": 3}, merged.StoredImageAnalysis)
}
