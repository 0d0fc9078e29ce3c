package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
)

// RequirePermission lets the request through only when the live engine grants
// every key. Claims in the credential are never consulted.
func RequirePermission(authz ports.Authorizer, keys ...domain.PermissionKey) echo.MiddlewareFunc {
	req := ports.Requirement{Permissions: keys}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}
			if err := authz.Authorize(c.Request().Context(), id.UserID, req); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireRole is a coarse gate on the role snapshot in the credential. A role
// revoked after issuance still passes until the credential expires; use
// RequirePermission where that matters.
func RequireRole(roles ...domain.SystemRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}
			if !id.HasSystemRole(roles...) {
				return domain.ErrRoleDenied
			}
			return next(c)
		}
	}
}
