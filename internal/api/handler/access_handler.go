package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/dispatch"
)

var viewUsers = domain.Key(domain.ActionView, domain.ResourceUsers)

// AccessHandler serves the caller's own authorization view.
type AccessHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewAccessHandler(dispatcher *dispatch.Dispatcher) *AccessHandler {
	return &AccessHandler{dispatcher: dispatcher}
}

// Me returns the credential identity plus the live active subscription.
//
// GET /v1/me
func (h *AccessHandler) Me(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	resp := meResponse{Identity: id}
	sub, err := dispatch.Query[usecase.GetActiveSubscription, *domain.Subscription](
		c.Request().Context(), h.dispatcher, usecase.GetActiveSubscription{UserID: id.UserID})
	switch {
	case err == nil:
		resp.Subscription = sub
	case errors.Is(err, domain.ErrSubscriptionNotFound):
	default:
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Permissions returns the caller's effective permission set.
//
// GET /v1/me/permissions
func (h *AccessHandler) Permissions(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	perms, err := dispatch.Query[usecase.GetEffectivePermissions, usecase.EffectivePermissions](
		c.Request().Context(), h.dispatcher, usecase.GetEffectivePermissions{UserID: id.UserID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perms)
}

// Menu returns the navigation tree pruned to the caller's permissions.
//
// GET /v1/me/menu
func (h *AccessHandler) Menu(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	items, err := dispatch.Query[usecase.GetVisibleMenu, []domain.MenuNode](
		c.Request().Context(), h.dispatcher, usecase.GetVisibleMenu{UserID: id.UserID})
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.MenuNode{}
	}
	return c.JSON(http.StatusOK, menuResponse{Items: items})
}

// Check evaluates a requirement and answers with a decision. Denials are a
// 200 with allowed=false. Checking another user needs View:Users.
//
// POST /v1/authz/check
func (h *AccessHandler) Check(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req checkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	subject := id.UserID
	if req.UserID != "" && req.UserID != id.UserID {
		gate, err := dispatch.Query[usecase.CheckPermission, usecase.Decision](ctx, h.dispatcher,
			usecase.CheckPermission{UserID: id.UserID, Permissions: []domain.PermissionKey{viewUsers}})
		if err != nil {
			return err
		}
		if !gate.Allowed {
			return fmt.Errorf("%w: checking another user requires %s", domain.ErrPermissionDenied, viewUsers)
		}
		subject = req.UserID
	}

	q, err := toCheckQuery(subject, req)
	if err != nil {
		return err
	}
	decision, err := dispatch.Query[usecase.CheckPermission, usecase.Decision](ctx, h.dispatcher, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}

func toCheckQuery(userID string, req checkRequest) (usecase.CheckPermission, error) {
	q := usecase.CheckPermission{UserID: userID, Entitled: req.Entitled}

	var err error
	if q.Permissions, err = parseKeys(req.Permissions); err != nil {
		return q, err
	}
	if q.AnyPermission, err = parseKeys(req.AnyPermission); err != nil {
		return q, err
	}
	for _, name := range req.AnyRole {
		role, err := domain.ParseSystemRole(name)
		if err != nil {
			return q, err
		}
		q.AnyRole = append(q.AnyRole, role)
	}
	if req.SubscriptionType != "" {
		t := domain.SubscriptionType(req.SubscriptionType)
		q.SubscriptionType = &t
	}
	return q, nil
}

func parseKeys(tags []string) ([]domain.PermissionKey, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	keys := make([]domain.PermissionKey, 0, len(tags))
	for _, tag := range tags {
		k, err := domain.ParsePermissionKey(tag)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
