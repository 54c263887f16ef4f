package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/givebridge/donation-system/internal/core/ports"
)

const snapshotKey = "requests:latest"

// SnapshotStore keeps the latest committed change per request in a Redis
// hash, field = request id, value = JSON-encoded change. Deletions are kept
// as tombstones so resyncing dashboards learn to drop the row.
type SnapshotStore struct {
	client *redis.Client
}

// NewSnapshotStore creates a SnapshotStore wrapping the given Redis client.
func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

// Save records the change as the latest known state of its request.
func (s *SnapshotStore) Save(ctx context.Context, change ports.Change) error {
	if change.Request == nil {
		return fmt.Errorf("snapshot save: change carries no request")
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	if err := s.client.HSet(ctx, snapshotKey, change.Request.ID, payload).Err(); err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	return nil
}

// Load returns the latest known change for every request.
func (s *SnapshotStore) Load(ctx context.Context) ([]ports.Change, error) {
	entries, err := s.client.HGetAll(ctx, snapshotKey).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot load: %w", err)
	}

	out := make([]ports.Change, 0, len(entries))
	for id, payload := range entries {
		var c ports.Change
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("snapshot load: decode %s: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}
