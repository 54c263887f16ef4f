package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/givebridge/donation-system/internal/core/domain"
	"github.com/givebridge/donation-system/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory store with a genuine compare-and-swap, so concurrency tests race
// against the same primitive the Mongo repository provides.
// ---------------------------------------------------------------------------

type memRequestRepo struct {
	mu   sync.Mutex
	reqs map[string]*domain.Request
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{reqs: make(map[string]*domain.Request)}
}

func (r *memRequestRepo) Get(_ context.Context, id string) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.reqs[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	clone := *req
	return &clone, nil
}

func (r *memRequestRepo) Create(_ context.Context, req *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *req
	r.reqs[req.ID] = &clone
	return nil
}

func (r *memRequestRepo) ConditionalUpdate(
	_ context.Context,
	id string,
	expectedStatus domain.RequestStatus,
	expectedVersion int64,
	mutation ports.UpdateMutation,
) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.reqs[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	if req.Status != expectedStatus || req.Version != expectedVersion {
		return nil, domain.ErrConflict
	}

	req.Status = mutation.Status
	req.ClaimantID = mutation.ClaimantID
	if mutation.Fields != nil {
		req.RequestFields = *mutation.Fields
	}
	req.Version++

	clone := *req
	return &clone, nil
}

func (r *memRequestRepo) Delete(_ context.Context, id string, expectedOwner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.reqs[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if req.OwnerID != expectedOwner {
		return domain.ErrForbidden
	}
	if req.Status != domain.StatusActive {
		return domain.ErrConflict
	}
	delete(r.reqs, id)
	return nil
}

func (r *memRequestRepo) List(_ context.Context, f ports.ListRequestsFilter) ([]*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Request
	for _, req := range r.reqs {
		if f.OwnerID != "" && req.OwnerID != f.OwnerID {
			continue
		}
		if f.ClaimantID != "" && req.ClaimantID != f.ClaimantID {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, s := range f.Statuses {
				if req.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		clone := *req
		out = append(out, &clone)
	}
	return out, nil
}

// conflictingRepo wraps memRequestRepo and fails every conditional update
// with a conflict, simulating a record under permanent contention.
type conflictingRepo struct {
	*memRequestRepo
}

func (r *conflictingRepo) ConditionalUpdate(
	_ context.Context, _ string, _ domain.RequestStatus, _ int64, _ ports.UpdateMutation,
) (*domain.Request, error) {
	return nil, domain.ErrConflict
}

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type recordingNotifier struct {
	mu      sync.Mutex
	changes []ports.Change
}

func (n *recordingNotifier) Publish(_ context.Context, c ports.Change) {
	n.mu.Lock()
	n.changes = append(n.changes, c)
	n.mu.Unlock()
}

func (n *recordingNotifier) Subscribe(_ context.Context, _ ports.SubscriptionFilter) (*ports.Subscription, error) {
	return &ports.Subscription{}, nil
}

func (n *recordingNotifier) Unsubscribe(_ *ports.Subscription) {}

func (n *recordingNotifier) recorded() []ports.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ports.Change, len(n.changes))
	copy(out, n.changes)
	return out
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*domain.TransitionEvent
}

func (a *recordingAudit) Record(_ context.Context, e *domain.TransitionEvent) error {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var (
	ngo       = domain.Actor{ID: "ngo-1", Role: domain.RoleNGO}
	vol1      = domain.Actor{ID: "vol-1", Role: domain.RoleVolunteer}
	vol2      = domain.Actor{ID: "vol-2", Role: domain.RoleVolunteer}
	donor     = domain.Actor{ID: "don-1", Role: domain.RoleDonor}
	mealsNeed = domain.RequestFields{
		Title:       "Meals",
		Description: "Hot meals for the shelter",
		Quantity:    "50",
		Location:    "Davao City",
		TimeNeeded:  "2025-01-15",
	}
)

func newCoordinator(repo ports.RequestRepository) (*RequestCoordinator, *recordingNotifier, *recordingAudit) {
	notifier := &recordingNotifier{}
	audit := &recordingAudit{}
	return NewRequestCoordinator(repo, notifier, audit, zerolog.Nop()), notifier, audit
}

func mustSubmit(t *testing.T, svc *RequestCoordinator) *domain.Request {
	t.Helper()
	req, err := svc.Submit(context.Background(), mealsNeed, ngo)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return req
}

// The claimant slot must be empty while active and filled while ongoing.
// A completed record may carry either: confirm retains the claimant as the
// fulfilment record, exit clears it.
func checkClaimantInvariant(t *testing.T, req *domain.Request) {
	t.Helper()
	switch req.Status {
	case domain.StatusActive:
		if req.ClaimantID != "" {
			t.Fatalf("active request carries claimant %q", req.ClaimantID)
		}
	case domain.StatusOngoing:
		if req.ClaimantID == "" {
			t.Fatal("ongoing request has no claimant")
		}
	}
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

func TestSubmit_Success(t *testing.T) {
	svc, notifier, _ := newCoordinator(newMemRequestRepo())

	req := mustSubmit(t, svc)

	if !strings.HasPrefix(req.ID, "REQ-") {
		t.Errorf("request id format wrong: %s", req.ID)
	}
	if req.Status != domain.StatusActive {
		t.Errorf("expected status active, got %s", req.Status)
	}
	if req.ClaimantID != "" {
		t.Errorf("new request must have no claimant, got %q", req.ClaimantID)
	}
	if req.OwnerID != ngo.ID {
		t.Errorf("owner: expected %s, got %s", ngo.ID, req.OwnerID)
	}
	if req.CreatedAt.IsZero() {
		t.Error("CreatedAt must not be zero")
	}

	changes := notifier.recorded()
	if len(changes) != 1 || changes[0].Kind != ports.ChangeCreated {
		t.Fatalf("expected one created change, got %+v", changes)
	}
}

func TestSubmit_ForbiddenForNonNGO(t *testing.T) {
	svc, notifier, _ := newCoordinator(newMemRequestRepo())

	for _, actor := range []domain.Actor{vol1, donor} {
		if _, err := svc.Submit(context.Background(), mealsNeed, actor); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("%s submit: expected ErrForbidden, got %v", actor.Role, err)
		}
	}
	if len(notifier.recorded()) != 0 {
		t.Error("denied submit must not publish")
	}
}

// ---------------------------------------------------------------------------
// Edit / Remove
// ---------------------------------------------------------------------------

func TestEdit_ReplacesFields(t *testing.T) {
	repo := newMemRequestRepo()
	svc, _, _ := newCoordinator(repo)
	req := mustSubmit(t, svc)

	edited := mealsNeed
	edited.Quantity = "75"
	updated, err := svc.Edit(context.Background(), req.ID, edited, ngo)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Quantity != "75" {
		t.Errorf("quantity not updated: %s", updated.Quantity)
	}
	if updated.Status != domain.StatusActive {
		t.Errorf("edit must keep status active, got %s", updated.Status)
	}
	if updated.Version != req.Version+1 {
		t.Errorf("version must advance: %d -> %d", req.Version, updated.Version)
	}
}

func TestEdit_ForbiddenForForeignNGO(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)

	other := domain.Actor{ID: "ngo-2", Role: domain.RoleNGO}
	if _, err := svc.Edit(context.Background(), req.ID, mealsNeed, other); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRemove_OnlyWhileActive(t *testing.T) {
	repo := newMemRequestRepo()
	svc, notifier, _ := newCoordinator(repo)
	req := mustSubmit(t, svc)

	if err := svc.Remove(context.Background(), req.ID, ngo); err != nil {
		t.Fatalf("remove active: %v", err)
	}
	if _, err := svc.Get(context.Background(), req.ID); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound after remove, got %v", err)
	}

	changes := notifier.recorded()
	if changes[len(changes)-1].Kind != ports.ChangeDeleted {
		t.Errorf("expected deleted change, got %s", changes[len(changes)-1].Kind)
	}

	// Ongoing records cannot be removed.
	req2 := mustSubmit(t, svc)
	if _, err := svc.Claim(context.Background(), req2.ID, vol1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := svc.Remove(context.Background(), req2.ID, ngo); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("remove ongoing: expected ErrInvalidTransition, got %v", err)
	}
}

func TestRemove_ForbiddenForNonOwner(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)

	if err := svc.Remove(context.Background(), req.ID, vol1); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("volunteer remove: expected ErrForbidden, got %v", err)
	}
	other := domain.Actor{ID: "ngo-2", Role: domain.RoleNGO}
	if err := svc.Remove(context.Background(), req.ID, other); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign NGO remove: expected ErrForbidden, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Claim / Exit / Confirm — end-to-end scenarios
// ---------------------------------------------------------------------------

func TestScenario_SubmitClaimSecondClaimRejected(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)

	claimed, err := svc.Claim(context.Background(), req.ID, vol1)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if claimed.Status != domain.StatusOngoing || claimed.ClaimantID != vol1.ID {
		t.Fatalf("after claim: status=%s claimant=%s", claimed.Status, claimed.ClaimantID)
	}
	checkClaimantInvariant(t, claimed)

	if _, err := svc.Claim(context.Background(), req.ID, vol2); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second claim: expected ErrInvalidTransition, got %v", err)
	}
}

func TestScenario_ExitCompletesAndBlocksReclaim(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)

	if _, err := svc.Claim(context.Background(), req.ID, vol1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	exited, err := svc.Exit(context.Background(), req.ID, vol1)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if exited.Status != domain.StatusCompleted || exited.ClaimantID != "" {
		t.Fatalf("after exit: status=%s claimant=%q", exited.Status, exited.ClaimantID)
	}

	if _, err := svc.Claim(context.Background(), req.ID, vol2); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("re-claim after exit: expected ErrInvalidTransition, got %v", err)
	}
}

func TestScenario_ConfirmRequiresOngoing(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)

	// Confirm while still active (no claimant yet) is rejected.
	if _, err := svc.Confirm(context.Background(), req.ID, ngo); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("confirm on active: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.Claim(context.Background(), req.ID, vol1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	confirmed, err := svc.Confirm(context.Background(), req.ID, ngo)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", confirmed.Status)
	}
	// Claimant retained as the historical record of who fulfilled it.
	if confirmed.ClaimantID != vol1.ID {
		t.Errorf("confirm must retain claimant, got %q", confirmed.ClaimantID)
	}
	checkClaimantInvariant(t, confirmed)
}

func TestExit_OnlyByCurrentClaimant(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)
	if _, err := svc.Claim(context.Background(), req.ID, vol1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := svc.Exit(context.Background(), req.ID, vol2); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("exit by non-claimant: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Exit(context.Background(), req.ID, ngo); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("exit by NGO: expected ErrForbidden, got %v", err)
	}
}

func TestCompleted_RejectsEveryMutation(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)
	if _, err := svc.Claim(context.Background(), req.ID, vol1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), req.ID, ngo); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.Edit(context.Background(), req.ID, mealsNeed, ngo); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("edit completed: expected ErrInvalidTransition, got %v", err)
	}
	if err := svc.Remove(context.Background(), req.ID, ngo); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("remove completed: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Claim(context.Background(), req.ID, vol2); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("claim completed: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Confirm(context.Background(), req.ID, ngo); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("re-confirm completed: expected ErrInvalidTransition, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

// Two volunteers race to claim the same active request. Exactly one must
// win; the loser observes an invalid transition (possibly after retrying a
// conflict), never a second success.
func TestClaim_ConcurrentRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		repo := newMemRequestRepo()
		svc, _, _ := newCoordinator(repo)
		req := mustSubmit(t, svc)

		var wg sync.WaitGroup
		results := make([]error, 2)
		for j, actor := range []domain.Actor{vol1, vol2} {
			wg.Add(1)
			go func(idx int, a domain.Actor) {
				defer wg.Done()
				_, results[idx] = svc.Claim(context.Background(), req.ID, a)
			}(j, actor)
		}
		wg.Wait()

		var wins, rejections int
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrContested):
				rejections++
			default:
				t.Fatalf("unexpected claim error: %v", err)
			}
		}
		if wins != 1 || rejections != 1 {
			t.Fatalf("round %d: wins=%d rejections=%d", i, wins, rejections)
		}

		stored, err := repo.Get(context.Background(), req.ID)
		if err != nil {
			t.Fatalf("get after race: %v", err)
		}
		checkClaimantInvariant(t, stored)
		if stored.Status != domain.StatusOngoing {
			t.Fatalf("after race: expected ongoing, got %s", stored.Status)
		}
	}
}

func TestTransition_ContestedAfterRetryBudget(t *testing.T) {
	repo := &conflictingRepo{newMemRequestRepo()}
	svc, notifier, _ := newCoordinator(repo)
	req := mustSubmit(t, svc)

	if _, err := svc.Claim(context.Background(), req.ID, vol1); !errors.Is(err, domain.ErrContested) {
		t.Fatalf("expected ErrContested, got %v", err)
	}
	// Only the submit change was published.
	if n := len(notifier.recorded()); n != 1 {
		t.Errorf("contested claim must not publish, got %d changes", n)
	}
}

// Random legal-and-illegal action sequences: the claimant-iff-ongoing
// invariant must hold after every operation, whatever the interleaving.
func TestInvariant_RandomActionSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	actors := []domain.Actor{ngo, vol1, vol2, donor, {ID: "ngo-2", Role: domain.RoleNGO}}

	for round := 0; round < 20; round++ {
		repo := newMemRequestRepo()
		svc, _, _ := newCoordinator(repo)
		req := mustSubmit(t, svc)

		for step := 0; step < 40; step++ {
			actor := actors[rng.Intn(len(actors))]
			var err error
			switch rng.Intn(5) {
			case 0:
				_, err = svc.Edit(context.Background(), req.ID, mealsNeed, actor)
			case 1:
				err = svc.Remove(context.Background(), req.ID, actor)
			case 2:
				_, err = svc.Claim(context.Background(), req.ID, actor)
			case 3:
				_, err = svc.Exit(context.Background(), req.ID, actor)
			default:
				_, err = svc.Confirm(context.Background(), req.ID, actor)
			}

			stored, getErr := repo.Get(context.Background(), req.ID)
			if errors.Is(getErr, domain.ErrRequestNotFound) {
				break // deleted; terminal for this round
			}
			if getErr != nil {
				t.Fatalf("get: %v", getErr)
			}
			checkClaimantInvariant(t, stored)

			if err != nil && !errors.Is(err, domain.ErrForbidden) &&
				!errors.Is(err, domain.ErrInvalidTransition) &&
				!errors.Is(err, domain.ErrRequestNotFound) {
				t.Fatalf("unexpected error class: %v", err)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Notifier and audit wiring
// ---------------------------------------------------------------------------

func TestLifecycle_PublishesEveryCommit(t *testing.T) {
	svc, notifier, audit := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)
	if _, err := svc.Claim(context.Background(), req.ID, vol1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), req.ID, ngo); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	changes := notifier.recorded()
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	kinds := []ports.ChangeKind{ports.ChangeCreated, ports.ChangeUpdated, ports.ChangeUpdated}
	statuses := []domain.RequestStatus{domain.StatusActive, domain.StatusOngoing, domain.StatusCompleted}
	for i, c := range changes {
		if c.Kind != kinds[i] {
			t.Errorf("change %d: expected kind %s, got %s", i, kinds[i], c.Kind)
		}
		if c.Request.Status != statuses[i] {
			t.Errorf("change %d: expected status %s, got %s", i, statuses[i], c.Request.Status)
		}
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(audit.events))
	}
	if audit.events[1].Action != domain.ActionClaim || audit.events[1].ActorID != vol1.ID {
		t.Errorf("claim audit wrong: %+v", audit.events[1])
	}
}

func TestGetAndList(t *testing.T) {
	svc, _, _ := newCoordinator(newMemRequestRepo())
	req := mustSubmit(t, svc)

	got, err := svc.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != req.ID {
		t.Errorf("get returned wrong record: %s", got.ID)
	}

	listed, err := svc.List(context.Background(), ports.ListRequestsFilter{OwnerID: ngo.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("list by owner: expected 1, got %d", len(listed))
	}

	listed, err = svc.List(context.Background(), ports.ListRequestsFilter{
		Statuses: []domain.RequestStatus{domain.StatusOngoing},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("list ongoing: expected 0, got %d", len(listed))
	}
}
