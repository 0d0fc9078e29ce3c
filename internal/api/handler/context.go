package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/api/middleware"
	"github.com/campusgate/access-core/internal/core/domain"
)

// ctxIdentity returns the identity injected by the Authenticate middleware.
// Its absence means the route was mounted without authentication.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}

// bindAndValidate decodes the body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}
