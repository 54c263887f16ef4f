package domain

import "fmt"

// Decision describes the committed effect of a legal transition.
type Decision struct {
	NextStatus RequestStatus
	// ClaimantID is the claimant slot after the transition; empty means none.
	ClaimantID string
	// Delete marks the record for removal instead of an update.
	Delete bool
}

// validTransitions defines the allowed state machine transitions per action.
var validTransitions = map[RequestStatus]map[Action]RequestStatus{
	StatusActive: {
		ActionEdit:   StatusActive,
		ActionDelete: StatusActive, // removal, no successor state
		ActionClaim:  StatusOngoing,
	},
	StatusOngoing: {
		ActionConfirm: StatusCompleted,
		ActionExit:    StatusCompleted,
	},
	// StatusCompleted is terminal: no entries.
}

// Decide is the pure lifecycle decision function. It performs no I/O and is
// evaluated after the authorization gate, so it only checks transition
// legality and structural guards on the claimant slot:
//
//	active   --edit-->    active     (fields replaced)
//	active   --delete-->  (removed)
//	active   --claim-->   ongoing    claimant := actor, slot must be empty
//	ongoing  --confirm--> completed  claimant retained as fulfilment record
//	ongoing  --exit-->    completed  claimant cleared, must be the caller
//
// Everything else is rejected with ErrInvalidTransition carrying the current
// status and the attempted action.
func Decide(req *Request, action Action, actor Actor) (Decision, error) {
	next, ok := validTransitions[req.Status][action]
	if !ok {
		return Decision{}, fmt.Errorf("%w: cannot %s a %s request", ErrInvalidTransition, action, req.Status)
	}

	switch action {
	case ActionEdit:
		return Decision{NextStatus: next}, nil
	case ActionDelete:
		return Decision{Delete: true}, nil
	case ActionClaim:
		if req.ClaimantID != "" {
			return Decision{}, fmt.Errorf("%w: request already claimed", ErrInvalidTransition)
		}
		return Decision{NextStatus: next, ClaimantID: actor.ID}, nil
	case ActionConfirm:
		if req.ClaimantID == "" {
			return Decision{}, fmt.Errorf("%w: cannot confirm a request without a claimant", ErrInvalidTransition)
		}
		return Decision{NextStatus: next, ClaimantID: req.ClaimantID}, nil
	case ActionExit:
		if req.ClaimantID != actor.ID {
			return Decision{}, fmt.Errorf("%w: only the current claimant may exit", ErrInvalidTransition)
		}
		return Decision{NextStatus: next}, nil
	default:
		return Decision{}, fmt.Errorf("%w: unknown action %s", ErrInvalidTransition, action)
	}
}
