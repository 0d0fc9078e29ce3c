package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/dispatch"
)

// AdminHandler exposes the RBAC mutations. Each command carries the caller
// as actor; the use case re-checks the actor against the live engine.
type AdminHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewAdminHandler(dispatcher *dispatch.Dispatcher) *AdminHandler {
	return &AdminHandler{dispatcher: dispatcher}
}

// CreateRole handles POST /v1/roles.
func (h *AdminHandler) CreateRole(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req createRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tag := domain.SystemRoleCustom
	if req.SystemRole != "" {
		if tag, err = domain.ParseSystemRole(req.SystemRole); err != nil {
			return err
		}
	}

	id := uuid.NewString()
	if err := dispatch.Command(c.Request().Context(), h.dispatcher, usecase.CreateRole{
		ActorID:     actor.UserID,
		ID:          id,
		Name:        req.Name,
		SystemRole:  tag,
		Description: req.Description,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// GrantPermission handles POST /v1/roles/:id/permissions.
func (h *AdminHandler) GrantPermission(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req grantPermissionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	key, err := domain.ParsePermissionKey(req.Permission)
	if err != nil {
		return err
	}

	if err := dispatch.Command(c.Request().Context(), h.dispatcher, usecase.GrantPermission{
		ActorID: actor.UserID,
		RoleID:  c.Param("id"),
		Key:     key,
	}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokePermission handles DELETE /v1/roles/:id/permissions/:key.
func (h *AdminHandler) RevokePermission(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	key, err := domain.ParsePermissionKey(c.Param("key"))
	if err != nil {
		return err
	}

	if err := dispatch.Command(c.Request().Context(), h.dispatcher, usecase.RevokePermission{
		ActorID: actor.UserID,
		RoleID:  c.Param("id"),
		Key:     key,
	}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignRole handles POST /v1/users/:id/roles.
func (h *AdminHandler) AssignRole(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req assignRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := dispatch.Command(c.Request().Context(), h.dispatcher, usecase.AssignRole{
		ActorID:   actor.UserID,
		UserID:    c.Param("id"),
		RoleID:    req.RoleID,
		ExpiresAt: req.ExpiresAt,
	}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeRole handles DELETE /v1/users/:id/roles/:role_id.
func (h *AdminHandler) RevokeRole(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := dispatch.Command(c.Request().Context(), h.dispatcher, usecase.RevokeRole{
		ActorID: actor.UserID,
		UserID:  c.Param("id"),
		RoleID:  c.Param("role_id"),
	}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateSubscription handles POST /v1/users/:id/subscriptions. A supplied id
// makes the call idempotent.
func (h *AdminHandler) CreateSubscription(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req createSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	status := domain.SubscriptionActive
	if req.Status != "" {
		if status, err = domain.ParseSubscriptionStatus(req.Status); err != nil {
			return err
		}
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	if err := dispatch.Command(c.Request().Context(), h.dispatcher, usecase.CreateSubscription{
		ActorID: actor.UserID,
		ID:      id,
		UserID:  c.Param("id"),
		Type:    domain.SubscriptionType(req.Type),
		Status:  status,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Amount:  req.Amount,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// UpdateSubscription handles PATCH /v1/subscriptions/:id.
func (h *AdminHandler) UpdateSubscription(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req updateSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	status, err := domain.ParseSubscriptionStatus(req.Status)
	if err != nil {
		return err
	}

	if err := dispatch.Command(c.Request().Context(), h.dispatcher, usecase.UpdateSubscriptionStatus{
		ActorID:        actor.UserID,
		SubscriptionID: c.Param("id"),
		Status:         status,
	}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UserRoles handles GET /v1/users/:id/roles.
func (h *AdminHandler) UserRoles(c echo.Context) error {
	roles, err := dispatch.Query[usecase.GetUserRoles, []domain.Role](
		c.Request().Context(), h.dispatcher, usecase.GetUserRoles{UserID: c.Param("id")})
	if err != nil {
		return err
	}
	if roles == nil {
		roles = []domain.Role{}
	}
	return c.JSON(http.StatusOK, roles)
}
