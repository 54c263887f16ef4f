package ports

import (
	"context"

	"github.com/givebridge/donation-system/internal/core/domain"
)

// ChangeKind classifies a committed state change.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is one committed coordinator operation, pushed to every subscriber
// whose filter matches. For deletions Request carries the last observed
// state of the removed record.
type Change struct {
	Seq     uint64          `json:"seq"`
	Kind    ChangeKind      `json:"kind"`
	Request *domain.Request `json:"request"`
}

// SubscriptionFilter selects records by attribute. The zero value matches
// every request.
type SubscriptionFilter struct {
	OwnerID    string
	ClaimantID string
	Statuses   []domain.RequestStatus
}

// Matches reports whether a change passes the filter. Deletions match on the
// record's last state so dashboards can drop the row.
func (f SubscriptionFilter) Matches(c Change) bool {
	r := c.Request
	if r == nil {
		return false
	}
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	if f.ClaimantID != "" && r.ClaimantID != f.ClaimantID {
		return false
	}
	if len(f.Statuses) > 0 && c.Kind != ChangeDeleted {
		ok := false
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Subscription is a live feed of matching changes. Deliveries arrive in
// commit order; a lagging subscriber may lose intermediate states but always
// converges to the latest one.
type Subscription struct {
	ID string
	C  <-chan Change
}

// ChangeNotifier fans out committed state changes to subscribed observers.
// Publish is safe for concurrent use; subscriptions have no side effect on
// the request store.
type ChangeNotifier interface {
	// Publish delivers the change to all matching live subscriptions and
	// records it as the latest known state of the request.
	Publish(ctx context.Context, change Change)
	// Subscribe registers a new observer. The subscription is primed with
	// the latest known state of every matching record before live changes.
	Subscribe(ctx context.Context, filter SubscriptionFilter) (*Subscription, error)
	Unsubscribe(sub *Subscription)
}

// SnapshotStore retains the latest committed change per request so that
// (re)subscribing observers can resync without reading the request store.
type SnapshotStore interface {
	Save(ctx context.Context, change Change) error
	Load(ctx context.Context) ([]Change, error)
}
