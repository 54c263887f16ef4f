package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/givebridge/donation-system/internal/core/domain"
	"github.com/givebridge/donation-system/internal/core/ports"
	"github.com/givebridge/donation-system/internal/pkg/metrics"
)

// maxAttempts bounds the conflict retry loop. Contention windows are
// microseconds, so no backoff is needed; once the budget is exhausted the
// caller gets ErrContested and must re-decide from fresh data.
const maxAttempts = 3

// RequestCoordinator orchestrates every mutating operation on donation
// requests: authorization gate, lifecycle decision, conditional write,
// change fan-out. The repository's per-record compare-and-swap plus the
// bounded retry here is what guarantees at most one volunteer ever claims a
// given request.
type RequestCoordinator struct {
	repo     ports.RequestRepository
	notifier ports.ChangeNotifier
	audit    ports.AuditLog
	logger   zerolog.Logger
}

func NewRequestCoordinator(
	repo ports.RequestRepository,
	notifier ports.ChangeNotifier,
	audit ports.AuditLog,
	logger zerolog.Logger,
) *RequestCoordinator {
	return &RequestCoordinator{repo: repo, notifier: notifier, audit: audit, logger: logger}
}

// Submit publishes a new request owned by the calling NGO.
func (s *RequestCoordinator) Submit(ctx context.Context, fields domain.RequestFields, actor domain.Actor) (*domain.Request, error) {
	if err := domain.Authorize(actor, domain.ActionSubmit, nil); err != nil {
		metrics.OperationsTotal.WithLabelValues(string(domain.ActionSubmit), "forbidden").Inc()
		return nil, err
	}

	now := time.Now().UTC()
	req := &domain.Request{
		ID:            generateRequestID(),
		OwnerID:       actor.ID,
		RequestFields: fields,
		Status:        domain.StatusActive,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		metrics.OperationsTotal.WithLabelValues(string(domain.ActionSubmit), "error").Inc()
		s.logger.Error().Err(err).Str("owner_id", actor.ID).Msg("failed to create request")
		return nil, err
	}

	s.logger.Info().Str("request_id", req.ID).Str("owner_id", actor.ID).Msg("request published")
	s.committed(ctx, ports.ChangeCreated, req, domain.ActionSubmit, actor, "", domain.StatusActive)
	return req, nil
}

// Edit replaces the free-form fields of an active request owned by the caller.
func (s *RequestCoordinator) Edit(ctx context.Context, id string, fields domain.RequestFields, actor domain.Actor) (*domain.Request, error) {
	return s.transition(ctx, id, domain.ActionEdit, actor, &fields)
}

// Remove deletes an active request owned by the caller.
func (s *RequestCoordinator) Remove(ctx context.Context, id string, actor domain.Actor) error {
	_, err := s.transition(ctx, id, domain.ActionDelete, actor, nil)
	return err
}

// Claim attaches the calling volunteer to an active request. Of two
// concurrent claims on the same record exactly one commits; the loser
// re-reads the now-ongoing record and fails the lifecycle check.
func (s *RequestCoordinator) Claim(ctx context.Context, id string, actor domain.Actor) (*domain.Request, error) {
	return s.transition(ctx, id, domain.ActionClaim, actor, nil)
}

// Exit releases the caller's claim, completing the request.
func (s *RequestCoordinator) Exit(ctx context.Context, id string, actor domain.Actor) (*domain.Request, error) {
	return s.transition(ctx, id, domain.ActionExit, actor, nil)
}

// Confirm lets the owning NGO close out an ongoing request. The claimant is
// retained as the historical record of who fulfilled it.
func (s *RequestCoordinator) Confirm(ctx context.Context, id string, actor domain.Actor) (*domain.Request, error) {
	return s.transition(ctx, id, domain.ActionConfirm, actor, nil)
}

// Get returns a single request. All roles may read.
func (s *RequestCoordinator) Get(ctx context.Context, id string) (*domain.Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns requests matching the filter. All roles may read.
func (s *RequestCoordinator) List(ctx context.Context, filter ports.ListRequestsFilter) ([]*domain.Request, error) {
	return s.repo.List(ctx, filter)
}

// transition runs the shared algorithm for every mutating operation on an
// existing record:
//
//  1. load the current record
//  2. authorization gate — denial never touches storage
//  3. lifecycle decision against the loaded status
//  4. conditional write expecting the status/version observed in step 1
//  5. on ErrConflict, retry from step 1 up to maxAttempts; legitimate
//     rejections from steps 2–3 are never retried
//  6. publish the committed change and return the new record state
func (s *RequestCoordinator) transition(ctx context.Context, id string, action domain.Action, actor domain.Actor, fields *domain.RequestFields) (*domain.Request, error) {
	op := string(action)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := s.repo.Get(ctx, id)
		if err != nil {
			metrics.OperationsTotal.WithLabelValues(op, outcome(err)).Inc()
			return nil, err
		}

		if err := domain.Authorize(actor, action, req); err != nil {
			metrics.OperationsTotal.WithLabelValues(op, "forbidden").Inc()
			return nil, err
		}

		decision, err := domain.Decide(req, action, actor)
		if err != nil {
			metrics.OperationsTotal.WithLabelValues(op, "invalid_transition").Inc()
			return nil, err
		}

		if decision.Delete {
			if err := s.repo.Delete(ctx, id, actor.ID); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					metrics.ConflictsTotal.WithLabelValues(op).Inc()
					continue
				}
				metrics.OperationsTotal.WithLabelValues(op, outcome(err)).Inc()
				return nil, err
			}
			removed := *req
			s.logger.Info().Str("request_id", id).Str("actor_id", actor.ID).Msg("request deleted")
			s.committed(ctx, ports.ChangeDeleted, &removed, action, actor, req.Status, req.Status)
			return &removed, nil
		}

		updated, err := s.repo.ConditionalUpdate(ctx, id, req.Status, req.Version, ports.UpdateMutation{
			Status:     decision.NextStatus,
			ClaimantID: decision.ClaimantID,
			Fields:     fields,
		})
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				metrics.ConflictsTotal.WithLabelValues(op).Inc()
				s.logger.Debug().Str("request_id", id).Str("action", op).Int("attempt", attempt+1).Msg("conditional update conflict, retrying")
				continue
			}
			metrics.OperationsTotal.WithLabelValues(op, outcome(err)).Inc()
			return nil, err
		}

		s.logger.Info().
			Str("request_id", id).
			Str("actor_id", actor.ID).
			Str("action", op).
			Str("status", string(updated.Status)).
			Msg("request transitioned")
		s.committed(ctx, ports.ChangeUpdated, updated, action, actor, req.Status, updated.Status)
		return updated, nil
	}

	metrics.OperationsTotal.WithLabelValues(op, "contested").Inc()
	return nil, fmt.Errorf("%w: %s on %s", domain.ErrContested, action, id)
}

// committed fans a successful write out to subscribers and the audit trail.
// Audit failures are logged, never surfaced: the write is already durable.
func (s *RequestCoordinator) committed(ctx context.Context, kind ports.ChangeKind, req *domain.Request, action domain.Action, actor domain.Actor, from, to domain.RequestStatus) {
	metrics.OperationsTotal.WithLabelValues(string(action), "ok").Inc()

	s.notifier.Publish(ctx, ports.Change{Kind: kind, Request: req})

	if s.audit == nil {
		return
	}
	event := &domain.TransitionEvent{
		RequestID: req.ID,
		Action:    action,
		ActorID:   actor.ID,
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("request_id", req.ID).Msg("failed to record audit event")
	}
}

// outcome maps an error to the metrics outcome label.
func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrRequestNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrContested):
		return "contested"
	default:
		return "error"
	}
}

// generateRequestID returns a unique request identifier in the format REQ-XXXXXXXXXXXX.
func generateRequestID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// fallback: use current nanoseconds
		return fmt.Sprintf("REQ-%012X", time.Now().UnixNano())
	}
	return fmt.Sprintf("REQ-%012X", b)
}
