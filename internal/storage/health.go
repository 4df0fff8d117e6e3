package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// MongoHealthStore implements HealthStore over the source_health collection.
// Counters are $inc upserts on the (source, day) key so concurrent crawls
// accumulate safely without application-level locking, and the telemetry
// survives process restarts.
type MongoHealthStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// Ensure MongoHealthStore implements HealthStore
var _ HealthStore = (*MongoHealthStore)(nil)

// RecordMetric increments today's counters for the source by the delta.
// Missing delta fields increment by zero; a non-empty Error overwrites the
// row's last-error fields.
func (s *MongoHealthStore) RecordMetric(ctx context.Context, sourceID string, delta domain.HealthDelta) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	inc := bson.M{
		"fetch_attempts":    delta.FetchAttempts,
		"fetch_successes":   delta.FetchSuccesses,
		"fetch_failures":    delta.FetchFailures,
		"parse_attempts":    delta.ParseAttempts,
		"parse_successes":   delta.ParseSuccesses,
		"parse_failures":    delta.ParseFailures,
		"listings_found":    delta.ListingsFound,
		"listings_new":      delta.ListingsNew,
		"listings_updated":  delta.ListingsUpdated,
		"listings_delisted": delta.ListingsDelisted,
		"duplicates_found":  delta.DuplicatesFound,
	}
	if delta.FetchDuration > 0 {
		inc["total_fetch_millis"] = delta.FetchDuration.Milliseconds()
		inc["fetch_samples"] = 1
	}

	set := bson.M{"updated_at": now}
	if delta.Error != "" {
		set["last_error"] = delta.Error
		set["last_error_at"] = now
	}

	filter := bson.M{"source_id": sourceID, "date": domain.HealthDate(now)}
	update := bson.M{"$inc": inc, "$set": set}
	opts := options.Update().SetUpsert(true)

	if _, err := s.coll.UpdateOne(opCtx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to record health metric for %s: %w", sourceID, err)
	}
	return nil
}

// Today returns today's row for the source, or a zero row when none exists.
func (s *MongoHealthStore) Today(ctx context.Context, sourceID string) (*domain.SourceHealth, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	date := domain.HealthDate(time.Now())
	var row domain.SourceHealth
	err := s.coll.FindOne(opCtx, bson.M{"source_id": sourceID, "date": date}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return &domain.SourceHealth{SourceID: sourceID, Date: date}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load health row: %w", err)
	}
	return &row, nil
}

// Series returns daily rows for all sources covering the trailing window.
func (s *MongoHealthStore) Series(ctx context.Context, days int) ([]*domain.SourceHealth, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if days <= 0 {
		days = 7
	}
	since := domain.HealthDate(time.Now().AddDate(0, 0, -days))
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "source_id", Value: 1}})
	cursor, err := s.coll.Find(opCtx, bson.M{"date": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query health series: %w", err)
	}
	defer cursor.Close(opCtx)

	var rows []*domain.SourceHealth
	if err := cursor.All(opCtx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode health series: %w", err)
	}
	return rows, nil
}

// Latest returns the most recent row per source.
func (s *MongoHealthStore) Latest(ctx context.Context) (map[string]*domain.SourceHealth, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: -1}}}},
		{{Key: "$group", Value: bson.M{"_id": "$source_id", "row": bson.M{"$first": "$$ROOT"}}}},
	}
	cursor, err := s.coll.Aggregate(opCtx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate latest health: %w", err)
	}
	defer cursor.Close(opCtx)

	out := make(map[string]*domain.SourceHealth)
	for cursor.Next(opCtx) {
		var wrapper struct {
			ID  string              `bson:"_id"`
			Row domain.SourceHealth `bson:"row"`
		}
		if err := cursor.Decode(&wrapper); err != nil {
			return nil, err
		}
		row := wrapper.Row
		out[wrapper.ID] = &row
	}
	return out, cursor.Err()
}
