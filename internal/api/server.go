// Package api implements the HTTP control surface: job processing and
// inspection, synchronous scrape triggers, and aggregate statistics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rentwatch/rentwatch/internal/config"
	"github.com/rentwatch/rentwatch/internal/crawl"
	"github.com/rentwatch/rentwatch/internal/job"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/sources"
	"github.com/rentwatch/rentwatch/internal/storage"
)

const readHeaderTimeout = 10 * time.Second

// Params holds the dependencies for creating an API server.
type Params struct {
	Config    config.Interface
	Logger    logger.Interface
	Registry  sources.Interface
	Listings  storage.ListingStore
	Queue     storage.JobQueue
	Health    storage.HealthStore
	Crawler   crawl.Interface
	Processor *job.Processor
}

// Server wraps the gin router and the underlying HTTP server.
type Server struct {
	http    *http.Server
	handler *Handler
	logger  logger.Interface
}

// NewServer builds the router and HTTP server. Call Start to begin serving.
func NewServer(p Params) *Server {
	handler := NewHandler(p)
	srvCfg := p.Config.GetServerConfig()

	return &Server{
		http: &http.Server{
			Addr:              srvCfg.Address,
			Handler:           SetupRouter(handler, p.Logger),
			ReadTimeout:       srvCfg.ReadTimeout,
			WriteTimeout:      srvCfg.WriteTimeout,
			IdleTimeout:       srvCfg.IdleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		handler: handler,
		logger:  p.Logger,
	}
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("API server stopping")
	return s.http.Shutdown(ctx)
}

// SetupRouter creates the gin router with all routes registered.
func SetupRouter(h *Handler, log logger.Interface) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	router.GET("/healthz", h.Healthz)

	v1 := router.Group("/api/v1")
	v1.POST("/jobs/process", h.ProcessJobs)
	v1.GET("/jobs", h.ListJobs)
	v1.POST("/scrape", h.Scrape)
	v1.GET("/stats", h.Stats)
	v1.GET("/listings/unanalyzed", h.UnanalyzedListings)

	return router
}

// loggingMiddleware logs each HTTP request through the structured logger.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
