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

// MongoJobQueue implements JobQueue over the jobs collection. The claim
// operation relies on FindOneAndUpdate's document-level atomicity: the filter
// and the status transition happen as one step, so two concurrent claimers
// can never both take the same job.
type MongoJobQueue struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// Ensure MongoJobQueue implements JobQueue
var _ JobQueue = (*MongoJobQueue)(nil)

// Enqueue inserts a pending job.
func (q *MongoJobQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if _, err := q.coll.InsertOne(opCtx, job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// ClaimNext atomically transitions the single highest-priority, earliest-
// eligible pending or retrying job to running. Returns nil, nil when no job
// is eligible.
func (q *MongoJobQueue) ClaimNext(ctx context.Context) (*domain.Job, error) {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"status":        bson.M{"$in": []domain.JobStatus{domain.JobPending, domain.JobRetrying}},
		"scheduled_for": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{
		"status":     domain.JobRunning,
		"started_at": now,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "scheduled_for", Value: 1}}).
		SetReturnDocument(options.After)

	var job domain.Job
	err := q.coll.FindOneAndUpdate(opCtx, filter, update, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &job, nil
}

// Complete marks a job completed with a result payload.
func (q *MongoJobQueue) Complete(ctx context.Context, jobID string, result map[string]any) error {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":       domain.JobCompleted,
		"result":       result,
		"completed_at": now,
		"updated_at":   now,
	}}
	res, err := q.coll.UpdateOne(opCtx, bson.M{"_id": jobID}, update)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	return nil
}

// Fail increments the attempt counter and either schedules a retry on the
// fixed backoff table or terminally fails the job, preserving the error for
// operator visibility.
func (q *MongoJobQueue) Fail(ctx context.Context, jobID string, jobErr error) error {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	var job domain.Job
	if err := q.coll.FindOne(opCtx, bson.M{"_id": jobID}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
		}
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	now := time.Now().UTC()
	attempts := job.Attempts + 1
	set := bson.M{
		"attempts":   attempts,
		"last_error": jobErr.Error(),
		"updated_at": now,
	}
	if attempts < job.MaxAttempts {
		retryAt := now.Add(domain.RetryDelay(attempts))
		set["status"] = domain.JobRetrying
		set["scheduled_for"] = retryAt
		set["next_retry_at"] = retryAt
	} else {
		set["status"] = domain.JobFailed
		set["completed_at"] = now
	}

	if _, err := q.coll.UpdateOne(opCtx, bson.M{"_id": jobID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("failed to record failure for job %s: %w", jobID, err)
	}
	return nil
}

// CountByStatus returns queue depth grouped by status.
func (q *MongoJobQueue) CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	cursor, err := q.coll.Aggregate(opCtx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate job counts: %w", err)
	}
	defer cursor.Close(opCtx)

	out := make(map[domain.JobStatus]int64)
	for cursor.Next(opCtx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		out[domain.JobStatus(row.ID)] = row.Count
	}
	return out, cursor.Err()
}

// Recent returns the most recently updated jobs.
func (q *MongoJobQueue) Recent(ctx context.Context, limit int64) ([]*domain.Job, error) {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(limit)
	cursor, err := q.coll.Find(opCtx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	defer cursor.Close(opCtx)

	var jobs []*domain.Job
	if err := cursor.All(opCtx, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}
	return jobs, nil
}

// HasPending reports whether a pending or retrying job of the given type
// already exists for the source. Used by the scheduler to avoid piling up
// duplicate refresh jobs.
func (q *MongoJobQueue) HasPending(ctx context.Context, jobType domain.JobType, sourceID string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	count, err := q.coll.CountDocuments(opCtx, bson.M{
		"type":              jobType,
		"payload.source_id": sourceID,
		"status":            bson.M{"$in": []domain.JobStatus{domain.JobPending, domain.JobRetrying, domain.JobRunning}},
	})
	if err != nil {
		return false, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count > 0, nil
}

// LastCompleted returns the completion time of the most recent completed job
// of the given type for the source. Used by the scheduler to space refreshes
// at each source's configured interval.
func (q *MongoJobQueue) LastCompleted(ctx context.Context, jobType domain.JobType, sourceID string) (*time.Time, error) {
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	filter := bson.M{
		"type":              jobType,
		"payload.source_id": sourceID,
		"status":            domain.JobCompleted,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "completed_at", Value: -1}})

	var job domain.Job
	err := q.coll.FindOne(opCtx, filter, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last completed job: %w", err)
	}
	return job.CompletedAt, nil
}
