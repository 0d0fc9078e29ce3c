package handler

import (
	"time"

	"github.com/campusgate/access-core/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	User      *domain.User `json:"user,omitempty"`
}

// --- Access ---

type meResponse struct {
	Identity     domain.Identity      `json:"identity"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
}

type checkRequest struct {
	UserID           string   `json:"user_id,omitempty"`
	Permissions      []string `json:"permissions"       validate:"dive,permkey"`
	AnyPermission    []string `json:"any_permission"    validate:"dive,permkey"`
	AnyRole          []string `json:"any_role"          validate:"dive,sysrole"`
	Entitled         bool     `json:"entitled"`
	SubscriptionType string   `json:"subscription_type,omitempty"`
}

type menuResponse struct {
	Items []domain.MenuNode `json:"items"`
}

// --- Admin ---

type createRoleRequest struct {
	Name        string `json:"name"        validate:"required"`
	SystemRole  string `json:"system_role" validate:"omitempty,sysrole"`
	Description string `json:"description"`
}

type grantPermissionRequest struct {
	Permission string `json:"permission" validate:"required,permkey"`
}

type assignRoleRequest struct {
	RoleID    string     `json:"role_id"    validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type createSubscriptionRequest struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"     validate:"required"`
	Status  string    `json:"status"   validate:"omitempty,substatus"`
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at"   validate:"required,gtfield=StartAt"`
	Amount  float64   `json:"amount"   validate:"gte=0"`
}

type updateSubscriptionRequest struct {
	Status string `json:"status" validate:"required,substatus"`
}

type createdResponse struct {
	ID string `json:"id"`
}
