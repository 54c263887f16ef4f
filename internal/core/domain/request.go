package domain

import (
	"errors"
	"time"
)

// RequestStatus represents the lifecycle state of a donation request.
type RequestStatus string

const (
	StatusActive    RequestStatus = "active"
	StatusOngoing   RequestStatus = "ongoing"
	StatusCompleted RequestStatus = "completed"
)

// Action identifies an operation attempted against a request.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionClaim   Action = "claim"
	ActionExit    Action = "exit"
	ActionConfirm Action = "confirm"
)

// Business outcomes. Forbidden and invalid-transition results are expected
// and recoverable by the caller; they are returned, never treated as fatal.
var ErrRequestNotFound = errors.New("request not found")
var ErrForbidden = errors.New("forbidden")
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrConflict is the store-level compare-and-swap failure. The coordinator
// retries it from a fresh read; it never reaches callers.
var ErrConflict = errors.New("concurrent modification")

// ErrContested is returned when the retry budget is exhausted under
// concurrent writers. The caller should re-issue the whole operation from
// fresh data rather than retry the same call.
var ErrContested = errors.New("request contested by concurrent writers")

// ErrStoreUnavailable wraps persistence-layer failures, the only condition
// treated as an infrastructure error rather than a business outcome.
var ErrStoreUnavailable = errors.New("request store unavailable")

var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")

// RequestFields are the NGO-editable free-form attributes of a request.
type RequestFields struct {
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
	Quantity    string `json:"quantity" bson:"quantity"`
	Location    string `json:"location" bson:"location"`
	TimeNeeded  string `json:"time_needed" bson:"time_needed"`
}

// Request is the central aggregate: one published need, claimable by exactly
// one volunteer at a time.
//
// Invariant: the claimant slot is empty while active and filled while
// ongoing; a completed record retains the claimant when the owner confirmed
// fulfilment and loses it when the volunteer exited. Version is the
// optimistic-concurrency token compared-and-swapped alongside Status on
// every conditional update.
type Request struct {
	ID      string `json:"id" bson:"_id,omitempty"`
	OwnerID string `json:"owner_id" bson:"owner_id"`
	RequestFields `bson:",inline"`
	Status     RequestStatus `json:"status" bson:"status"`
	ClaimantID string        `json:"claimant_id,omitempty" bson:"claimant_id,omitempty"`
	Version    int64         `json:"-" bson:"version"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at"`
}

// Terminal reports whether the request admits no further transitions.
func (r *Request) Terminal() bool {
	return r.Status == StatusCompleted
}
