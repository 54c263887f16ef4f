package ports

import (
	"context"

	"github.com/givebridge/donation-system/internal/core/domain"
)

// RequestService defines the coordinator use-cases, one method per client
// action. Mutating methods run the authorization gate and the lifecycle
// decision before any storage access, perform the write as a conditional
// update against the observed prior state, and publish committed changes to
// the notifier.
//
// Acknowledgement is commit: once a method returns successfully the write is
// durable and cannot be rolled back.
type RequestService interface {
	Submit(ctx context.Context, fields domain.RequestFields, actor domain.Actor) (*domain.Request, error)
	Edit(ctx context.Context, id string, fields domain.RequestFields, actor domain.Actor) (*domain.Request, error)
	Remove(ctx context.Context, id string, actor domain.Actor) error
	Claim(ctx context.Context, id string, actor domain.Actor) (*domain.Request, error)
	Exit(ctx context.Context, id string, actor domain.Actor) (*domain.Request, error)
	Confirm(ctx context.Context, id string, actor domain.Actor) (*domain.Request, error)

	Get(ctx context.Context, id string) (*domain.Request, error)
	List(ctx context.Context, filter ListRequestsFilter) ([]*domain.Request, error)
}
