package ports

import (
	"context"

	"github.com/campusgate/access-core/internal/core/domain"
)

// Requirement describes what a protected operation needs. Every non-empty leg
// must pass.
type Requirement struct {
	// Permissions must all be held.
	Permissions []domain.PermissionKey
	// AnyPermission needs at least one held key when non-empty.
	AnyPermission []domain.PermissionKey
	// AnyRole needs at least one of the built-in roles when non-empty.
	AnyRole []domain.SystemRole
	// Entitled gates on an active subscription.
	Entitled bool
	// SubscriptionType narrows the gate to one plan. Implies Entitled.
	SubscriptionType *domain.SubscriptionType
}

// IsEmpty reports whether the requirement names no check at all.
func (r Requirement) IsEmpty() bool {
	return len(r.Permissions) == 0 && len(r.AnyPermission) == 0 && len(r.AnyRole) == 0 &&
		!r.Entitled && r.SubscriptionType == nil
}

// Authorizer is the single decision point. Every method fails closed: on
// error the boolean result is false and the error wraps
// domain.ErrDecisionIndeterminate.
type Authorizer interface {
	HasPermission(ctx context.Context, userID string, key domain.PermissionKey) (bool, error)
	HasAnyRole(ctx context.Context, userID string, roles ...domain.SystemRole) (bool, error)
	HasAnyRoleNamed(ctx context.Context, userID string, names ...string) (bool, error)
	IsEntitled(ctx context.Context, userID string, required *domain.SubscriptionType) (bool, error)
	Permissions(ctx context.Context, userID string) (domain.PermissionSet, error)
	// Authorize returns nil when granted, one of domain.ErrPermissionDenied,
	// domain.ErrRoleDenied or domain.ErrNotEntitled when denied, or an
	// indeterminate error.
	Authorize(ctx context.Context, userID string, req Requirement) error
}

// CredentialService issues and validates signed credentials.
type CredentialService interface {
	Issue(ctx context.Context, userID string) (*domain.Credential, error)
	Validate(ctx context.Context, token string) (*domain.Identity, error)
}
