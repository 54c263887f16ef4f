package ports

import (
	"context"

	"github.com/givebridge/donation-system/internal/core/domain"
)

// ListRequestsFilter carries query parameters for listing requests.
type ListRequestsFilter struct {
	OwnerID    string                 // non-empty = requests published by this NGO
	ClaimantID string                 // non-empty = requests claimed by this volunteer
	Statuses   []domain.RequestStatus // empty = all statuses
}

// UpdateMutation is the effect applied by a conditional update. The
// coordinator derives it from a lifecycle Decision; repositories apply it
// verbatim.
type UpdateMutation struct {
	Status domain.RequestStatus
	// ClaimantID is the claimant slot after the update; empty clears it.
	ClaimantID string
	// Fields, when non-nil, replaces the NGO-editable fields.
	Fields *domain.RequestFields
}

// RequestRepository defines persistence operations for donation requests.
//
// ConditionalUpdate is the only path by which status or the claimant slot
// may change. The implementation must commit atomically only when the stored
// status and version still equal the expected values, and return
// domain.ErrConflict otherwise — a plain read-then-write sequence does not
// satisfy this contract. Operations on different requests never contend.
type RequestRepository interface {
	Get(ctx context.Context, id string) (*domain.Request, error)
	Create(ctx context.Context, req *domain.Request) error
	ConditionalUpdate(
		ctx context.Context,
		id string,
		expectedStatus domain.RequestStatus,
		expectedVersion int64,
		mutation UpdateMutation,
	) (*domain.Request, error)
	// Delete removes the request only while it is still active and owned by
	// expectedOwner. Returns domain.ErrRequestNotFound, domain.ErrForbidden
	// (owner mismatch) or domain.ErrConflict (no longer active).
	Delete(ctx context.Context, id string, expectedOwner string) error
	List(ctx context.Context, filter ListRequestsFilter) ([]*domain.Request, error)
}
