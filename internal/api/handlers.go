package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rentwatch/rentwatch/internal/crawl"
	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/job"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/sources"
	"github.com/rentwatch/rentwatch/internal/storage"
)

const (
	defaultProcessMax  = 5
	defaultRecentJobs  = 20
	defaultSampleLimit = 10
	defaultUnanalyzed  = 50
	defaultSeriesDays  = 7
)

// Handler carries the route handlers and their dependencies.
type Handler struct {
	registry  sources.Interface
	listings  storage.ListingStore
	queue     storage.JobQueue
	health    storage.HealthStore
	crawler   crawl.Interface
	processor *job.Processor
	logger    logger.Interface
}

// NewHandler creates the route handler set.
func NewHandler(p Params) *Handler {
	return &Handler{
		registry:  p.Registry,
		listings:  p.Listings,
		queue:     p.Queue,
		health:    p.Health,
		crawler:   p.Crawler,
		processor: p.Processor,
		logger:    p.Logger,
	}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ProcessJobs handles POST /api/v1/jobs/process
func (h *Handler) ProcessJobs(c *gin.Context) {
	maxJobs, err := strconv.Atoi(c.DefaultQuery("max", strconv.Itoa(defaultProcessMax)))
	if err != nil || maxJobs <= 0 {
		maxJobs = defaultProcessMax
	}

	summary, err := h.processor.ProcessJobs(c.Request.Context(), maxJobs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Job processing failed: " + err.Error(),
			"summary": summary,
		})
		return
	}

	c.JSON(http.StatusOK, ProcessJobsResponse{Summary: summary})
}

// ListJobs handles GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultRecentJobs)), 10, 64)
	if err != nil || limit <= 0 {
		limit = defaultRecentJobs
	}

	depth, err := h.queue.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count jobs"})
		return
	}
	recent, err := h.queue.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, JobsResponse{Depth: depth, Recent: recent})
}

// Scrape handles POST /api/v1/scrape. The crawl runs synchronously; the
// response includes a sample of stored listings narrowed by the request's
// filter fields.
func (h *Handler) Scrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if _, err := h.registry.GetEnabled(req.SourceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	result, err := h.crawler.Run(c.Request.Context(), domain.CrawlParams{
		SourceID:    req.SourceID,
		MaxPages:    req.MaxPages,
		MaxListings: req.MaxListings,
		DryRun:      req.DryRun,
	})
	if err != nil {
		// The result still carries partial counts; surface both.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	sample, err := h.listings.Find(c.Request.Context(), storage.ListingFilter{
		SourceID: req.SourceID,
		Borough:  req.Borough,
		MinPrice: req.MinPrice,
		MaxPrice: req.MaxPrice,
		Beds:     req.Beds,
		Status:   domain.ListingActive,
		Limit:    defaultSampleLimit,
	})
	if err != nil {
		h.logger.Warn("Failed to load listing sample", "source", req.SourceID, "error", err)
		sample = nil
	}

	c.JSON(http.StatusOK, ScrapeResponse{
		Result:  result,
		Sample:  sample,
		Sampled: len(sample),
	})
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	byStatus, err := h.listings.CountByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count listings"})
		return
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}

	duplicates, err := h.listings.CountDuplicates(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count duplicates"})
		return
	}
	dedupRate := 0.0
	if total > 0 {
		dedupRate = float64(duplicates) / float64(total)
	}

	bySource, err := h.listings.CountBySource(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count listings by source"})
		return
	}

	jobDepth, err := h.queue.CountByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count jobs"})
		return
	}

	latest, err := h.health.Latest(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load source health"})
		return
	}

	sourceStats := make([]SourceStats, 0)
	for _, source := range h.registry.All() {
		stat := SourceStats{
			SourceID: source.ID,
			Name:     source.Name,
			Enabled:  source.Enabled,
			Listings: bySource[source.ID],
		}
		if row, ok := latest[source.ID]; ok {
			stat.State = row.Classify(source.Enabled)
			stat.FailureRate = row.FailureRate()
			stat.AvgFetchMs = row.AvgFetchMillis()
			stat.LastError = row.LastError
			stat.ListingsFound = row.ListingsFound
		} else {
			empty := &domain.SourceHealth{SourceID: source.ID}
			stat.State = empty.Classify(source.Enabled)
		}
		sourceStats = append(sourceStats, stat)
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultSeriesDays)))
	if err != nil || days <= 0 {
		days = defaultSeriesDays
	}
	series, err := h.health.Series(ctx, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load health series"})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		ListingsByStatus: byStatus,
		TotalListings:    total,
		DuplicateCount:   duplicates,
		DedupRate:        dedupRate,
		Jobs:             jobDepth,
		Sources:          sourceStats,
		DailySeries:      series,
	})
}

// UnanalyzedListings handles GET /api/v1/listings/unanalyzed
func (h *Handler) UnanalyzedListings(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultUnanalyzed)), 10, 64)
	if err != nil || limit <= 0 {
		limit = defaultUnanalyzed
	}
	sourceID := c.Query("source")

	listings, err := h.listings.FindUnanalyzed(c.Request.Context(), sourceID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load listings"})
		return
	}
	if listings == nil {
		listings = []*domain.NormalizedListing{}
	}

	c.JSON(http.StatusOK, UnanalyzedResponse{Listings: listings, Count: len(listings)})
}
