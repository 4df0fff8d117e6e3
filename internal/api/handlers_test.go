package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/api"
	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/job"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/sources"
	"github.com/rentwatch/rentwatch/internal/storage/memstore"
)

type fakeCrawler struct {
	result *domain.CrawlResult
	err    error
}

func (c *fakeCrawler) Run(_ context.Context, params domain.CrawlParams) (*domain.CrawlResult, error) {
	if c.result == nil {
		return &domain.CrawlResult{SourceID: params.SourceID}, c.err
	}
	return c.result, c.err
}

type fixture struct {
	router   *gin.Engine
	listings *memstore.Listings
	queue    *memstore.Queue
	health   *memstore.Health
}

func newFixture(t *testing.T, crawler *fakeCrawler) *fixture {
	t.Helper()

	registry := sources.NewRegistry([]domain.SourceConfig{
		{ID: "testsource", Name: "Test Source", Enabled: true, Priority: 5},
		{ID: "off", Name: "Disabled Source", Enabled: false},
	}, logger.NewNop())

	f := &fixture{
		listings: memstore.NewListings(),
		queue:    memstore.NewQueue(),
		health:   memstore.NewHealth(),
	}
	handler := api.NewHandler(api.Params{
		Logger:    logger.NewNop(),
		Registry:  registry,
		Listings:  f.listings,
		Queue:     f.queue,
		Health:    f.health,
		Crawler:   crawler,
		Processor: job.NewProcessor(f.queue, crawler, logger.NewNop()),
	})
	f.router = api.SetupRouter(handler, logger.NewNop())
	return f
}

func (f *fixture) request(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	w := f.request(http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestScrape_ValidationError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	w := f.request(http.MethodPost, "/api/v1/scrape", `{"maxPages": 2}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScrape_UnknownSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	w := f.request(http.MethodPost, "/api/v1/scrape", `{"sourceId":"nope"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScrape_DisabledSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	w := f.request(http.MethodPost, "/api/v1/scrape", `{"sourceId":"off"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScrape_ReturnsResultAndSample(t *testing.T) {
	t.Parallel()

	crawler := &fakeCrawler{result: &domain.CrawlResult{
		SourceID:      "testsource",
		ListingsFound: 1,
		ListingsNew:   1,
	}}
	f := newFixture(t, crawler)

	_, err := f.listings.Upsert(context.Background(), &domain.NormalizedListing{
		SourceID:  "testsource",
		SourceURL: "https://rentals.example.com/listing/1",
		Price:     2500,
		Status:    domain.ListingActive,
	})
	require.NoError(t, err)

	w := f.request(http.MethodPost, "/api/v1/scrape", `{"sourceId":"testsource"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result  *domain.CrawlResult         `json:"result"`
		Sample  []*domain.NormalizedListing `json:"sample"`
		Sampled int                         `json:"sampled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, 1, resp.Result.ListingsNew)
	assert.Equal(t, 1, resp.Sampled)
	require.Len(t, resp.Sample, 1)
	assert.Equal(t, "https://rentals.example.com/listing/1", resp.Sample[0].SourceURL)
}

func TestProcessJobsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	ctx := context.Background()

	queued := domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: "testsource"}, 5, time.Time{})
	require.NoError(t, f.queue.Enqueue(ctx, queued))

	w := f.request(http.MethodPost, "/api/v1/jobs/process?max=3", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Summary *job.ProcessSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 1, resp.Summary.Claimed)
	assert.Equal(t, 1, resp.Summary.Completed)
	require.Len(t, resp.Summary.Jobs, 1)
	assert.Equal(t, queued.ID, resp.Summary.Jobs[0].JobID)
	assert.Equal(t, domain.JobRefresh, resp.Summary.Jobs[0].Type)
	assert.Equal(t, domain.JobCompleted, resp.Summary.Jobs[0].Status)
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, domain.NewJob(domain.JobRefresh, domain.JobPayload{SourceID: "testsource"}, 5, time.Time{})))

	w := f.request(http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Depth  map[string]int64 `json:"depth"`
		Recent []*domain.Job    `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Depth["pending"])
	require.Len(t, resp.Recent, 1)
	assert.Equal(t, "testsource", resp.Recent[0].Payload.SourceID)
}

func TestStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	ctx := context.Background()

	_, err := f.listings.Upsert(ctx, &domain.NormalizedListing{
		SourceID:  "testsource",
		SourceURL: "https://rentals.example.com/listing/1",
		Price:     2500,
		Status:    domain.ListingActive,
	})
	require.NoError(t, err)
	require.NoError(t, f.health.RecordMetric(ctx, "testsource", domain.HealthDelta{
		FetchAttempts:  10,
		FetchSuccesses: 9,
		FetchFailures:  1,
		ListingsFound:  1,
	}))

	w := f.request(http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ListingsByStatus map[string]int64 `json:"listingsByStatus"`
		TotalListings    int64            `json:"totalListings"`
		DedupRate        float64          `json:"dedupRate"`
		Sources          []struct {
			SourceID    string  `json:"sourceId"`
			State       string  `json:"state"`
			FailureRate float64 `json:"failureRate"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.TotalListings)
	assert.Equal(t, int64(1), resp.ListingsByStatus["active"])
	require.Len(t, resp.Sources, 2)

	byID := make(map[string]string, len(resp.Sources))
	var failureRate float64
	for _, s := range resp.Sources {
		byID[s.SourceID] = s.State
		if s.SourceID == "testsource" {
			failureRate = s.FailureRate
		}
	}
	assert.Equal(t, "healthy", byID["testsource"])
	assert.Equal(t, "disabled", byID["off"])
	assert.InDelta(t, 0.1, failureRate, 1e-9)
}

func TestUnanalyzedListings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeCrawler{})
	ctx := context.Background()

	_, err := f.listings.Upsert(ctx, &domain.NormalizedListing{
		SourceID:  "testsource",
		SourceURL: "https://rentals.example.com/listing/1",
		Price:     2500,
		Status:    domain.ListingActive,
		ImageURLs: []string{"https://img.example.com/1.jpg"},
	})
	require.NoError(t, err)

	w := f.request(http.MethodGet, "/api/v1/listings/unanalyzed?source=testsource", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Listings []*domain.NormalizedListing `json:"listings"`
		Count    int                         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Listings, 1)

	// Empty result is an empty array, not null.
	w = f.request(http.MethodGet, "/api/v1/listings/unanalyzed?source=off", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"listings":[]`)
}
