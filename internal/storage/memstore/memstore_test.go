package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/storage"
	"github.com/rentwatch/rentwatch/internal/storage/memstore"
)

func listing(sourceID, url string, price float64) *domain.NormalizedListing {
	return &domain.NormalizedListing{
		SourceID:  sourceID,
		SourceURL: url,
		Title:     "Test Listing",
		Price:     price,
		Status:    domain.ListingActive,
	}
}

func TestUpsert_NaturalKeyUniqueness(t *testing.T) {
	t.Parallel()

	store := memstore.NewListings()
	ctx := context.Background()

	first, err := store.Upsert(ctx, listing("src", "https://x.example.com/1", 2500))
	require.NoError(t, err)
	assert.True(t, first.Created)

	// Same (sourceID, sourceURL) updates in place; no second row appears.
	second, err := store.Upsert(ctx, listing("src", "https://x.example.com/1", 2500))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, 1, store.Len())

	// The internal id is stable across re-scrapes.
	assert.Equal(t, first.Listing.ListingID, second.Listing.ListingID)

	// The same URL under a different source is a different listing.
	third, err := store.Upsert(ctx, listing("other", "https://x.example.com/1", 2500))
	require.NoError(t, err)
	assert.True(t, third.Created)
	assert.Equal(t, 2, store.Len())
}

func TestUpsert_PriceChange(t *testing.T) {
	t.Parallel()

	store := memstore.NewListings()
	ctx := context.Background()

	_, err := store.Upsert(ctx, listing("src", "u1", 2500))
	require.NoError(t, err)

	outcome, err := store.Upsert(ctx, listing("src", "u1", 2400))
	require.NoError(t, err)
	assert.True(t, outcome.PriceChanged)
	require.Len(t, outcome.Listing.PriceHistory, 1)
	assert.Equal(t, 2500.0, outcome.Listing.PriceHistory[0].Price)
}

func TestMarkListingsDelisted(t *testing.T) {
	t.Parallel()

	store := memstore.NewListings()
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := store.Upsert(ctx, listing("src", u, 2000))
		require.NoError(t, err)
	}
	// Another source's listings are untouched by reconciliation.
	_, err := store.Upsert(ctx, listing("other", "u9", 2000))
	require.NoError(t, err)

	delisted, err := store.MarkListingsDelisted(ctx, "src", []string{"u2", "u3"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), delisted)

	gone := store.Get("src", "u1")
	require.NotNil(t, gone)
	assert.Equal(t, domain.ListingDelisted, gone.Status)
	require.NotNil(t, gone.DelistedAt)

	kept := store.Get("src", "u2")
	assert.Equal(t, domain.ListingActive, kept.Status)
	assert.Equal(t, domain.ListingActive, store.Get("other", "u9").Status)

	// A later crawl that sees u1 again flags the relist.
	outcome, err := store.Upsert(ctx, listing("src", "u1", 2000))
	require.NoError(t, err)
	assert.True(t, outcome.RelistDetected)
	assert.Equal(t, domain.ListingActive, outcome.Listing.Status)
	assert.Nil(t, outcome.Listing.DelistedAt)
}

func TestFindPotentialDuplicates(t *testing.T) {
	t.Parallel()

	store := memstore.NewListings()
	ctx := context.Background()

	beds := 2.0
	base := listing("src", "u1", 3000)
	base.Beds = &beds
	base.Address.Borough = "Brooklyn"
	_, err := store.Upsert(ctx, base)
	require.NoError(t, err)

	// Within 5% price, same beds and borough: candidate.
	near := listing("other", "u2", 3100)
	near.Beds = &beds
	near.Address.Borough = "Brooklyn"
	_, err = store.Upsert(ctx, near)
	require.NoError(t, err)

	// Price outside the window: excluded.
	far := listing("other", "u3", 3600)
	far.Beds = &beds
	far.Address.Borough = "Brooklyn"
	_, err = store.Upsert(ctx, far)
	require.NoError(t, err)

	// Different borough: excluded.
	elsewhere := listing("other", "u4", 3000)
	elsewhere.Beds = &beds
	elsewhere.Address.Borough = "Queens"
	_, err = store.Upsert(ctx, elsewhere)
	require.NoError(t, err)

	stored := store.Get("src", "u1")
	candidates, err := store.FindPotentialDuplicates(ctx, stored, storage.DuplicateFilterOptions{
		PriceTolerance: storage.DefaultPriceTolerance,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "u2", candidates[0].SourceURL)
}

func TestFind_Filters(t *testing.T) {
	t.Parallel()

	store := memstore.NewListings()
	ctx := context.Background()

	beds2 := 2.0
	a := listing("src", "u1", 2500)
	a.Beds = &beds2
	a.Address.Borough = "Brooklyn"
	_, err := store.Upsert(ctx, a)
	require.NoError(t, err)

	b := listing("src", "u2", 4000)
	b.Address.Borough = "Manhattan"
	_, err = store.Upsert(ctx, b)
	require.NoError(t, err)

	got, err := store.Find(ctx, storage.ListingFilter{Borough: "Brooklyn"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].SourceURL)

	got, err = store.Find(ctx, storage.ListingFilter{MinPrice: 3000})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u2", got[0].SourceURL)

	got, err = store.Find(ctx, storage.ListingFilter{Beds: &beds2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].SourceURL)
}

func TestFindUnanalyzed(t *testing.T) {
	t.Parallel()

	store := memstore.NewListings()
	ctx := context.Background()

	withImages := listing("src", "u1", 2500)
	withImages.ImageURLs = []string{"https://img.example.com/1.jpg"}
	_, err := store.Upsert(ctx, withImages)
	require.NoError(t, err)

	analyzed := listing("src", "u2", 2500)
	analyzed.ImageURLs = []string{"https://img.example.com/2.jpg"}
	analyzed.StoredImageAnalysis = map[string]any{"rooms": 2}
	_, err = store.Upsert(ctx, analyzed)
	require.NoError(t, err)

	// No images: nothing to analyze.
	noImages := listing("src", "u3", 2500)
	_, err = store.Upsert(ctx, noImages)
	require.NoError(t, err)

	got, err := store.FindUnanalyzed(ctx, "src", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].SourceURL)
}

func TestPages(t *testing.T) {
	t.Parallel()

	store := memstore.NewPages()
	ctx := context.Background()

	page := &domain.RawPage{SourceID: "src", URL: "u1", HTTPStatus: 200, Content: "<html></html>"}
	require.NoError(t, store.Insert(ctx, page))
	require.NotEmpty(t, page.ID)

	require.NoError(t, store.SetParseStatus(ctx, page.ID, domain.ParseParsed, ""))
	stored := store.Get(page.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.ParseParsed, stored.ParseStatus)

	err := store.SetParseStatus(ctx, "missing", domain.ParseFailed, "boom")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
