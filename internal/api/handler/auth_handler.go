package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/dispatch"
)

type AuthHandler struct {
	authService ports.AuthService
	dispatcher  *dispatch.Dispatcher
}

func NewAuthHandler(authService ports.AuthService, dispatcher *dispatch.Dispatcher) *AuthHandler {
	return &AuthHandler{authService: authService, dispatcher: dispatcher}
}

// Register creates a new user account with the default role.
//
// POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, authResponse{User: user})
}

// Login checks the password and issues a credential carrying the user's
// current roles and subscription.
//
// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.authService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	cred, err := dispatch.Query[usecase.IssueCredential, *domain.Credential](ctx, h.dispatcher, usecase.IssueCredential{UserID: user.ID})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, authResponse{Token: cred.Token, ExpiresAt: &cred.ExpiresAt, User: user})
}
