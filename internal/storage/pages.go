package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/google/uuid"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// MongoPageStore implements PageStore over the raw_pages collection.
// Pages are write-once; only the parse outcome fields change afterwards.
type MongoPageStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// Ensure MongoPageStore implements PageStore
var _ PageStore = (*MongoPageStore)(nil)

// Insert records one fetch attempt, assigning the page id.
func (s *MongoPageStore) Insert(ctx context.Context, page *domain.RawPage) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if page.ID == "" {
		page.ID = uuid.New().String()
	}
	if _, err := s.coll.InsertOne(opCtx, page); err != nil {
		return fmt.Errorf("failed to insert raw page: %w", err)
	}
	return nil
}

// SetParseStatus updates the parse outcome of a stored page.
func (s *MongoPageStore) SetParseStatus(ctx context.Context, pageID string, status domain.ParseStatus, errorMessage string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	set := bson.M{"parse_status": status, "parsed_at": now}
	if errorMessage != "" {
		set["error_message"] = errorMessage
	}

	result, err := s.coll.UpdateOne(opCtx, bson.M{"_id": pageID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update parse status for page %s: %w", pageID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: page %s", ErrNotFound, pageID)
	}
	return nil
}
