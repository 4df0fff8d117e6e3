package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// MongoListingStore implements ListingStore over the listings collection.
type MongoListingStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// Ensure MongoListingStore implements ListingStore
var _ ListingStore = (*MongoListingStore)(nil)

// Upsert stores a scraped listing under its natural key. The merge semantics
// live in domain.ApplyScrape; the unique index on (source_id, source_url)
// guards the insert race, which is retried as an update.
func (s *MongoListingStore) Upsert(ctx context.Context, scraped *domain.NormalizedListing) (*UpsertOutcome, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	key := bson.M{"source_id": scraped.SourceID, "source_url": scraped.SourceURL}

	var existing domain.NormalizedListing
	err := s.coll.FindOne(opCtx, key).Decode(&existing)
	switch {
	case err == nil:
		return s.update(opCtx, &existing, scraped, now)
	case errors.Is(err, mongo.ErrNoDocuments):
		outcome, insertErr := s.insert(opCtx, scraped, now)
		if insertErr != nil && mongo.IsDuplicateKeyError(insertErr) {
			// Lost the insert race: another writer created the row.
			if err := s.coll.FindOne(opCtx, key).Decode(&existing); err != nil {
				return nil, fmt.Errorf("failed to reload listing after duplicate insert: %w", err)
			}
			return s.update(opCtx, &existing, scraped, now)
		}
		return outcome, insertErr
	default:
		return nil, fmt.Errorf("failed to look up listing: %w", err)
	}
}

// insert creates a fresh listing row.
func (s *MongoListingStore) insert(ctx context.Context, scraped *domain.NormalizedListing, now time.Time) (*UpsertOutcome, error) {
	fresh := domain.NewFromScrape(scraped, now)
	if _, err := s.coll.InsertOne(ctx, fresh); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert listing: %w", err)
	}
	return &UpsertOutcome{Created: true, Listing: fresh}, nil
}

// update folds the scrape into the existing row and replaces its fields.
func (s *MongoListingStore) update(ctx context.Context, existing, scraped *domain.NormalizedListing, now time.Time) (*UpsertOutcome, error) {
	merged := domain.ApplyScrape(existing, scraped, now)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": existing.ListingID}, merged); err != nil {
		return nil, fmt.Errorf("failed to update listing %s: %w", existing.ListingID, err)
	}
	return &UpsertOutcome{
		Created:        false,
		PriceChanged:   len(merged.PriceHistory) > len(existing.PriceHistory),
		RelistDetected: merged.RelistDetected && !existing.RelistDetected,
		Listing:        merged,
	}, nil
}

// MarkListingsDelisted flips active listings absent from this crawl's active
// URL set to delisted. Absence is the sole delisting signal.
func (s *MongoListingStore) MarkListingsDelisted(ctx context.Context, sourceID string, activeURLs []string) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if activeURLs == nil {
		activeURLs = []string{}
	}
	now := time.Now().UTC()
	result, err := s.coll.UpdateMany(opCtx,
		bson.M{
			"source_id":  sourceID,
			"status":     domain.ListingActive,
			"source_url": bson.M{"$nin": activeURLs},
		},
		bson.M{"$set": bson.M{
			"status":          domain.ListingDelisted,
			"delisted_at":     now,
			"last_updated_at": now,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark listings delisted: %w", err)
	}
	return result.ModifiedCount, nil
}

// FindPotentialDuplicates returns other listings within the price tolerance
// matching beds, baths, and borough exactly, excluding the listing itself and
// anything already flagged duplicate. Low precision, high recall; resolution
// is a separate consumer's job.
func (s *MongoListingStore) FindPotentialDuplicates(ctx context.Context, listing *domain.NormalizedListing, opts DuplicateFilterOptions) ([]*domain.NormalizedListing, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tolerance := opts.PriceTolerance
	if tolerance <= 0 {
		tolerance = DefaultPriceTolerance
	}

	filter := bson.M{
		"_id": bson.M{"$ne": listing.ListingID},
		"price": bson.M{
			"$gte": listing.Price * (1 - tolerance),
			"$lte": listing.Price * (1 + tolerance),
		},
		"address.borough":    listing.Address.Borough,
		"dedup.is_duplicate": false,
	}
	if listing.Beds != nil {
		filter["beds"] = *listing.Beds
	} else {
		filter["beds"] = bson.M{"$exists": false}
	}
	if listing.Baths != nil {
		filter["baths"] = *listing.Baths
	} else {
		filter["baths"] = bson.M{"$exists": false}
	}

	return s.decodeAll(opCtx, filter, nil)
}

// Find returns listings matching the filter, newest first.
func (s *MongoListingStore) Find(ctx context.Context, filter ListingFilter) ([]*domain.NormalizedListing, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := bson.M{}
	if filter.SourceID != "" {
		query["source_id"] = filter.SourceID
	}
	if filter.Borough != "" {
		query["address.borough"] = filter.Borough
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	price := bson.M{}
	if filter.MinPrice > 0 {
		price["$gte"] = filter.MinPrice
	}
	if filter.MaxPrice > 0 {
		price["$lte"] = filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	if filter.Beds != nil {
		query["beds"] = *filter.Beds
	}

	opts := options.Find().SetSort(bson.D{{Key: "last_seen_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	return s.decodeAll(opCtx, query, opts)
}

// CountByStatus returns listing counts grouped by status.
func (s *MongoListingStore) CountByStatus(ctx context.Context) (map[domain.ListingStatus]int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	groups, err := s.groupCounts(opCtx, "$status")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ListingStatus]int64, len(groups))
	for key, count := range groups {
		out[domain.ListingStatus(key)] = count
	}
	return out, nil
}

// CountBySource returns listing counts grouped by source.
func (s *MongoListingStore) CountBySource(ctx context.Context) (map[string]int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.groupCounts(opCtx, "$source_id")
}

// CountDuplicates returns how many listings are flagged duplicate.
func (s *MongoListingStore) CountDuplicates(ctx context.Context) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.coll.CountDocuments(opCtx, bson.M{"dedup.is_duplicate": true})
	if err != nil {
		return 0, fmt.Errorf("failed to count duplicates: %w", err)
	}
	return count, nil
}

// FindUnanalyzed returns active listings without a stored image analysis,
// for the external image-analysis consumer.
func (s *MongoListingStore) FindUnanalyzed(ctx context.Context, sourceID string, limit int64) ([]*domain.NormalizedListing, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := bson.M{
		"status":                bson.M{"$ne": domain.ListingDelisted},
		"stored_image_analysis": bson.M{"$exists": false},
		"image_urls.0":          bson.M{"$exists": true},
	}
	if sourceID != "" {
		query["source_id"] = sourceID
	}
	opts := options.Find().SetSort(bson.D{{Key: "first_seen_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.decodeAll(opCtx, query, opts)
}

// groupCounts runs a $group count aggregation keyed by the given field path.
func (s *MongoListingStore) groupCounts(ctx context.Context, field string) (map[string]int64, error) {
	cursor, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate counts: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.Count
	}
	return out, cursor.Err()
}

// decodeAll runs a find and decodes every document.
func (s *MongoListingStore) decodeAll(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*domain.NormalizedListing, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = s.coll.Find(ctx, query, opts)
	} else {
		cursor, err = s.coll.Find(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer cursor.Close(ctx)

	var listings []*domain.NormalizedListing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	return listings, nil
}
