package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/core/domain"
)

// CredentialValidator verifies a bearer token.
type CredentialValidator interface {
	Validate(ctx context.Context, token string) (*domain.Identity, error)
}

// Authenticate validates the bearer credential and injects its identity into
// the context. Validation errors reach the error handler as 401s.
func Authenticate(validator CredentialValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			identity, err := validator.Validate(c.Request().Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}

			SetIdentity(c, *identity)
			return next(c)
		}
	}
}
