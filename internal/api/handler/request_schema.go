package handler

import (
	"time"

	"github.com/givebridge/donation-system/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

// requestFieldsPayload carries the NGO-editable fields, used by both submit
// and edit. All fields are required, mirroring the original submission form.
type requestFieldsPayload struct {
	Title       string `json:"title"        validate:"required"`
	Description string `json:"description"  validate:"required"`
	Quantity    string `json:"quantity"     validate:"required"`
	Location    string `json:"location"     validate:"required"`
	TimeNeeded  string `json:"time_needed"  validate:"required"`
}

func (p requestFieldsPayload) toFields() domain.RequestFields {
	return domain.RequestFields{
		Title:       p.Title,
		Description: p.Description,
		Quantity:    p.Quantity,
		Location:    p.Location,
		TimeNeeded:  p.TimeNeeded,
	}
}

type requestLinks struct {
	Self string `json:"self"`
}

type requestResponse struct {
	ID         string       `json:"id"`
	OwnerID    string       `json:"owner_id"`
	Title      string       `json:"title"`
	Description string      `json:"description"`
	Quantity   string       `json:"quantity"`
	Location   string       `json:"location"`
	TimeNeeded string       `json:"time_needed"`
	Status     string       `json:"status"`
	ClaimantID string       `json:"claimant_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Links      requestLinks `json:"_links"`
}

func toRequestResponse(r *domain.Request) requestResponse {
	return requestResponse{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Quantity:    r.Quantity,
		Location:    r.Location,
		TimeNeeded:  r.TimeNeeded,
		Status:      string(r.Status),
		ClaimantID:  r.ClaimantID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Links:       requestLinks{Self: "/v1/requests/" + r.ID},
	}
}

type listRequestsResponse struct {
	Items []requestResponse `json:"items"`
	Total int               `json:"total"`
}
