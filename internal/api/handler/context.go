package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/givebridge/donation-system/internal/core/domain"
)

// ctxActor materializes the Actor injected by the Auth middleware and
// performs a fast-fail check before any service call: both the subject id
// and a recognized role must be present, otherwise the token is structurally
// valid but operationally unusable — reject with 401.
func ctxActor(c echo.Context) (domain.Actor, error) {
	id, _ := c.Get("actor_id").(string)
	role, _ := c.Get("role").(string)
	if id == "" || role == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	if !domain.ValidRole(role) {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "token carries unknown role")
	}

	return domain.Actor{ID: id, Role: role}, nil
}
