package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/givebridge/donation-system/internal/core/domain"
	"github.com/givebridge/donation-system/internal/core/ports"
)

// RequestHandler exposes the six coordinator operations plus reads.
type RequestHandler struct {
	service ports.RequestService
}

func NewRequestHandler(service ports.RequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Submit handles POST /v1/requests.
//
// @Summary      Publish a new donation request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      requestFieldsPayload  true  "Request fields"
// @Success      201   {object}  requestResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/requests [post]
func (h *RequestHandler) Submit(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req requestFieldsPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	created, err := h.service.Submit(c.Request().Context(), req.toFields(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toRequestResponse(created))
}

// Edit handles PUT /v1/requests/:id.
//
// @Summary      Edit an active request's fields
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Request id"
// @Param        body  body      requestFieldsPayload  true  "Replacement fields"
// @Success      200   {object}  requestResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/requests/{id} [put]
func (h *RequestHandler) Edit(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req requestFieldsPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	updated, err := h.service.Edit(c.Request().Context(), c.Param("id"), req.toFields(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRequestResponse(updated))
}

// Remove handles DELETE /v1/requests/:id.
//
// @Summary      Delete an active request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/requests/{id} [delete]
func (h *RequestHandler) Remove(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.service.Remove(c.Request().Context(), c.Param("id"), actor); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Claim handles POST /v1/requests/:id/claim.
//
// @Summary      Claim an active request as a volunteer
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request id"
// @Success      200  {object}  requestResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/requests/{id}/claim [post]
func (h *RequestHandler) Claim(c echo.Context) error {
	return h.transition(c, h.service.Claim)
}

// Exit handles POST /v1/requests/:id/exit.
//
// @Summary      Release the caller's claim on a request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request id"
// @Success      200  {object}  requestResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/requests/{id}/exit [post]
func (h *RequestHandler) Exit(c echo.Context) error {
	return h.transition(c, h.service.Exit)
}

// Confirm handles POST /v1/requests/:id/confirm.
//
// @Summary      Confirm completion of an ongoing request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request id"
// @Success      200  {object}  requestResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/requests/{id}/confirm [post]
func (h *RequestHandler) Confirm(c echo.Context) error {
	return h.transition(c, h.service.Confirm)
}

// Get handles GET /v1/requests/:id.
//
// @Summary      Get a single request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request id"
// @Success      200  {object}  requestResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/requests/{id} [get]
func (h *RequestHandler) Get(c echo.Context) error {
	if _, err := ctxActor(c); err != nil {
		return err
	}

	req, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRequestResponse(req))
}

// List handles GET /v1/requests.
//
// @Summary      List requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        owner_id     query  string  false  "Filter by owning NGO"
// @Param        claimant_id  query  string  false  "Filter by claiming volunteer"
// @Param        status       query  string  false  "Comma-separated statuses (active,ongoing,completed)"
// @Success      200  {object}  listRequestsResponse
// @Router       /v1/requests [get]
func (h *RequestHandler) List(c echo.Context) error {
	if _, err := ctxActor(c); err != nil {
		return err
	}

	items, err := h.service.List(c.Request().Context(), listFilter(c))
	if err != nil {
		return err
	}

	resp := listRequestsResponse{Items: make([]requestResponse, 0, len(items)), Total: len(items)}
	for _, r := range items {
		resp.Items = append(resp.Items, toRequestResponse(r))
	}
	return c.JSON(http.StatusOK, resp)
}

// transition runs the shared flow for the body-less lifecycle endpoints.
func (h *RequestHandler) transition(c echo.Context, op func(ctx context.Context, id string, actor domain.Actor) (*domain.Request, error)) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	updated, err := op(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRequestResponse(updated))
}

// listFilter parses list query parameters shared with the stream endpoint.
func listFilter(c echo.Context) ports.ListRequestsFilter {
	f := ports.ListRequestsFilter{
		OwnerID:    c.QueryParam("owner_id"),
		ClaimantID: c.QueryParam("claimant_id"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, domain.RequestStatus(strings.TrimSpace(s)))
		}
	}
	return f
}
