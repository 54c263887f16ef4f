package domain

import "time"

// TransitionEvent records a single committed lifecycle transition for the
// audit trail.
type TransitionEvent struct {
	RequestID string
	Action    Action
	ActorID   string
	From      RequestStatus
	To        RequestStatus
	Timestamp time.Time
}
