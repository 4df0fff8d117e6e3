package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rentwatch/rentwatch/internal/config"
	"github.com/rentwatch/rentwatch/internal/logger"
)

// Collection names.
const (
	listingsCollection = "listings"
	pagesCollection    = "raw_pages"
	jobsCollection     = "jobs"
	healthCollection   = "source_health"
)

// Common storage errors.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
)

// Client wraps the MongoDB connection and exposes the repositories.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	logger   logger.Interface

	queryTimeout time.Duration

	Listings *MongoListingStore
	Pages    *MongoPageStore
	Jobs     *MongoJobQueue
	Health   *MongoHealthStore
}

// Connect opens the MongoDB connection, pings it, and ensures indexes.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, log logger.Interface) (*Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := mongoClient.Database(cfg.Database)
	c := &Client{
		client:       mongoClient,
		database:     db,
		logger:       log,
		queryTimeout: cfg.QueryTimeout,
	}
	c.Listings = &MongoListingStore{coll: db.Collection(listingsCollection), timeout: cfg.QueryTimeout}
	c.Pages = &MongoPageStore{coll: db.Collection(pagesCollection), timeout: cfg.QueryTimeout}
	c.Jobs = &MongoJobQueue{coll: db.Collection(jobsCollection), timeout: cfg.QueryTimeout}
	c.Health = &MongoHealthStore{coll: db.Collection(healthCollection), timeout: cfg.QueryTimeout}

	if err := c.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Info("Connected to MongoDB", "database", cfg.Database)
	return c, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// ensureIndexes creates the secondary indexes every repository relies on.
func (c *Client) ensureIndexes(ctx context.Context) error {
	indexCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	listingIndexes := []mongo.IndexModel{
		{
			// The natural key: one listing per (source, url).
			Keys:    bson.D{{Key: "source_id", Value: 1}, {Key: "source_url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "address.borough", Value: 1}}},
	}
	if _, err := c.database.Collection(listingsCollection).Indexes().CreateMany(indexCtx, listingIndexes); err != nil {
		return fmt.Errorf("listings: %w", err)
	}

	jobIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: -1}, {Key: "scheduled_for", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	}
	if _, err := c.database.Collection(jobsCollection).Indexes().CreateMany(indexCtx, jobIndexes); err != nil {
		return fmt.Errorf("jobs: %w", err)
	}

	healthIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "source_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := c.database.Collection(healthCollection).Indexes().CreateMany(indexCtx, healthIndexes); err != nil {
		return fmt.Errorf("health: %w", err)
	}

	pageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "fetched_at", Value: -1}}},
	}
	if _, err := c.database.Collection(pagesCollection).Indexes().CreateMany(indexCtx, pageIndexes); err != nil {
		return fmt.Errorf("pages: %w", err)
	}

	return nil
}
