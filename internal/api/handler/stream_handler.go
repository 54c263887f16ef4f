package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/givebridge/donation-system/internal/core/ports"
)

// StreamHandler serves the live dashboard feed over server-sent events.
type StreamHandler struct {
	notifier ports.ChangeNotifier
}

func NewStreamHandler(notifier ports.ChangeNotifier) *StreamHandler {
	return &StreamHandler{notifier: notifier}
}

// Stream handles GET /v1/requests/stream — subscribes with a filter built
// from the query parameters and streams changes until the client
// disconnects. The feed opens with a resync burst of the latest state of
// every matching request, then live changes in commit order.
//
// @Summary      Stream request changes (SSE)
// @Tags         requests
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        owner_id     query  string  false  "Filter by owning NGO"
// @Param        claimant_id  query  string  false  "Filter by claiming volunteer"
// @Param        status       query  string  false  "Comma-separated statuses (active,ongoing,completed)"
// @Success      200
// @Router       /v1/requests/stream [get]
func (h *StreamHandler) Stream(c echo.Context) error {
	if _, err := ctxActor(c); err != nil {
		return err
	}

	lf := listFilter(c)
	sub, err := h.notifier.Subscribe(c.Request().Context(), ports.SubscriptionFilter{
		OwnerID:    lf.OwnerID,
		ClaimantID: lf.ClaimantID,
		Statuses:   lf.Statuses,
	})
	if err != nil {
		return err
	}
	defer h.notifier.Unsubscribe(sub)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-sub.C:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(change)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
