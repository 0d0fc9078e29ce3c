package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain
// errors to status codes and renders {"error": "<message>"}. Unexpected
// errors are logged and answered with a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	// Indeterminate first: its chain may carry any store error.
	case errors.Is(err, domain.ErrDecisionIndeterminate):
		logFailure(log, c, err, "authorization decision indeterminate")
		if errors.Is(err, domain.ErrMultipleActiveSubscriptions) {
			return http.StatusInternalServerError, "subscription data inconsistent"
		}
		return http.StatusServiceUnavailable, "authorization temporarily unavailable"
	case errors.Is(err, domain.ErrMultipleActiveSubscriptions):
		logFailure(log, c, err, "subscription integrity violation")
		return http.StatusInternalServerError, "subscription data inconsistent"

	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrCredentialExpired):
		return http.StatusUnauthorized, "credential expired"
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid credential"

	case domain.IsDenial(err):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrRoleExists),
		errors.Is(err, domain.ErrActiveSubscriptionExists):
		return http.StatusConflict, err.Error()

	case errors.Is(err, domain.ErrRoleNotFound),
		errors.Is(err, domain.ErrPermissionNotFound),
		errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	}

	logFailure(log, c, err, "unhandled error")
	return http.StatusInternalServerError, "internal server error"
}

func logFailure(log zerolog.Logger, c echo.Context, err error, msg string) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg(msg)
}
