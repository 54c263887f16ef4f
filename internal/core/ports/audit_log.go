package ports

import (
	"context"

	"github.com/givebridge/donation-system/internal/core/domain"
)

// AuditLog persists committed transitions to an append-only trail. Recording
// is best-effort: the coordinator treats failures as non-fatal.
type AuditLog interface {
	Record(ctx context.Context, event *domain.TransitionEvent) error
}
