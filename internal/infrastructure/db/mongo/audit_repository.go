package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/givebridge/donation-system/internal/core/domain"
	"github.com/givebridge/donation-system/internal/core/ports"
)

const collectionTransitions = "request_events"

// AuditRepository implements ports.AuditLog using MongoDB. Failures here are
// tolerated by the coordinator, so errors are returned raw for logging.
type AuditRepository struct {
	db *mongo.Database
}

func NewAuditRepository(db *mongo.Database) ports.AuditLog {
	return &AuditRepository{db: db}
}

// Record appends a committed transition to the request_events trail.
func (r *AuditRepository) Record(ctx context.Context, event *domain.TransitionEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"request_id":   event.RequestID,
		"action":       string(event.Action),
		"actor_id":     event.ActorID,
		"from_status":  string(event.From),
		"to_status":    string(event.To),
		"timestamp":    event.Timestamp.UTC(),
		"processed_at": time.Now().UTC(),
	}

	_, err := r.db.Collection(collectionTransitions).InsertOne(ctx, doc)
	return err
}
