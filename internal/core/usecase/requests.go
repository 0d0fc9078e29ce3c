// Package usecase defines the commands and queries routed through the
// dispatcher and the handlers that serve them.
package usecase

import (
	"time"

	"github.com/campusgate/access-core/internal/core/domain"
)

// ── Queries ──────────────────────────────────────────────────────────────────

type GetEffectivePermissions struct {
	UserID string
}

type EffectivePermissions struct {
	UserID      string              `json:"user_id"`
	Permissions []domain.Permission `json:"permissions"`
}

// CheckPermission asks for a decision without failing on denial.
type CheckPermission struct {
	UserID           string
	Permissions      []domain.PermissionKey
	AnyPermission    []domain.PermissionKey
	AnyRole          []domain.SystemRole
	Entitled         bool
	SubscriptionType *domain.SubscriptionType
}

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type GetUserRoles struct {
	UserID string
}

type GetActiveSubscription struct {
	UserID string
}

type GetVisibleMenu struct {
	UserID string
}

type ValidateCredential struct {
	Token string
}

// IssueCredential is routed as a query because it returns the credential.
type IssueCredential struct {
	UserID string
}

// ── Commands ─────────────────────────────────────────────────────────────────

// CreateRole creates a role. ID is optional; callers that need the id back
// generate it up front.
type CreateRole struct {
	ActorID     string
	ID          string
	Name        string
	SystemRole  domain.SystemRole
	Description string
}

type SetRoleActive struct {
	ActorID string
	RoleID  string
	Active  bool
}

// GrantPermission grants the permission identified by Key to a role,
// creating the permission row when it does not exist yet.
type GrantPermission struct {
	ActorID string
	RoleID  string
	Key     domain.PermissionKey
}

type RevokePermission struct {
	ActorID string
	RoleID  string
	Key     domain.PermissionKey
}

type AssignRole struct {
	ActorID   string
	UserID    string
	RoleID    string
	ExpiresAt *time.Time
}

type RevokeRole struct {
	ActorID string
	UserID  string
	RoleID  string
}

// CreateSubscription records a subscription. Replaying a command with an ID
// that already exists is a no-op.
type CreateSubscription struct {
	ActorID string
	EventID string
	ID      string
	UserID  string
	Type    domain.SubscriptionType
	Status  domain.SubscriptionStatus
	StartAt time.Time
	EndAt   time.Time
	Amount  float64
}

func (c CreateSubscription) ShardKey() string { return c.UserID }

func (c CreateSubscription) IdempotencyKey() string { return eventKey(c.EventID) }

type UpdateSubscriptionStatus struct {
	ActorID        string
	EventID        string
	UserID         string
	SubscriptionID string
	Status         domain.SubscriptionStatus
}

// ShardKey falls back to the subscription id when the user is unknown.
func (c UpdateSubscriptionStatus) ShardKey() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.SubscriptionID
}

func (c UpdateSubscriptionStatus) IdempotencyKey() string { return eventKey(c.EventID) }

func eventKey(eventID string) string {
	if eventID == "" {
		return ""
	}
	return "billing:" + eventID
}
