package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/givebridge/donation-system/internal/core/domain"
	"github.com/givebridge/donation-system/internal/core/ports"
)

const collectionRequests = "requests"

// RequestRepository implements ports.RequestRepository on MongoDB. The
// conditional update is a single FindOneAndUpdate whose filter matches id,
// status, and version, which gives the per-record compare-and-swap the
// coordinator's guarantees rest on.
type RequestRepository struct {
	col *mongo.Collection
}

func NewRequestRepository(db *mongo.Database) *RequestRepository {
	return &RequestRepository{col: db.Collection(collectionRequests)}
}

func (r *RequestRepository) Get(ctx context.Context, id string) (*domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var req domain.Request
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("%w: get request: %v", domain.ErrStoreUnavailable, err)
	}
	return &req, nil
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.Request) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("%w: insert request: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ConditionalUpdate commits the mutation only if the stored status and
// version still equal the expected values, in one atomic document operation.
// A miss is disambiguated into not-found vs conflict with a follow-up
// existence check.
func (r *RequestRepository) ConditionalUpdate(
	ctx context.Context,
	id string,
	expectedStatus domain.RequestStatus,
	expectedVersion int64,
	mutation ports.UpdateMutation,
) (*domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":     id,
		"status":  string(expectedStatus),
		"version": expectedVersion,
	}

	set := bson.M{
		"status":     string(mutation.Status),
		"updated_at": time.Now().UTC(),
	}
	if mutation.Fields != nil {
		set["title"] = mutation.Fields.Title
		set["description"] = mutation.Fields.Description
		set["quantity"] = mutation.Fields.Quantity
		set["location"] = mutation.Fields.Location
		set["time_needed"] = mutation.Fields.TimeNeeded
	}

	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}
	if mutation.ClaimantID != "" {
		set["claimant_id"] = mutation.ClaimantID
	} else {
		update["$unset"] = bson.M{"claimant_id": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Request
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: conditional update: %v", domain.ErrStoreUnavailable, err)
	}

	// Filter missed: either the record is gone or another writer moved it.
	n, countErr := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if countErr != nil {
		return nil, fmt.Errorf("%w: conditional update: %v", domain.ErrStoreUnavailable, countErr)
	}
	if n == 0 {
		return nil, domain.ErrRequestNotFound
	}
	return nil, domain.ErrConflict
}

// Delete removes the request only while still active and owned by
// expectedOwner.
func (r *RequestRepository) Delete(ctx context.Context, id string, expectedOwner string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{
		"_id":      id,
		"owner_id": expectedOwner,
		"status":   string(domain.StatusActive),
	})
	if err != nil {
		return fmt.Errorf("%w: delete request: %v", domain.ErrStoreUnavailable, err)
	}
	if res.DeletedCount == 1 {
		return nil
	}

	var existing domain.Request
	err = r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: delete request: %v", domain.ErrStoreUnavailable, err)
	}
	if existing.OwnerID != expectedOwner {
		return fmt.Errorf("%w: request owned by another organization", domain.ErrForbidden)
	}
	return domain.ErrConflict
}

func (r *RequestRepository) List(ctx context.Context, filter ports.ListRequestsFilter) ([]*domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	if filter.ClaimantID != "" {
		query["claimant_id"] = filter.ClaimantID
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list requests: %v", domain.ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	var out []*domain.Request
	for cur.Next(ctx) {
		var req domain.Request
		if err := cur.Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: list requests: %v", domain.ErrStoreUnavailable, err)
		}
		out = append(out, &req)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: list requests: %v", domain.ErrStoreUnavailable, err)
	}
	return out, nil
}

// EnsureIndexes creates necessary indexes on the requests collection.
func (r *RequestRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "claimant_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
