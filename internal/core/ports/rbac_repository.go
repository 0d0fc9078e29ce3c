package ports

import (
	"context"

	"github.com/campusgate/access-core/internal/core/domain"
)

// RBACReader is the lookup side of the RBAC store.
type RBACReader interface {
	// GetRolesForUser returns the active roles the user holds through
	// non-expired assignments.
	GetRolesForUser(ctx context.Context, userID string) ([]domain.Role, error)
	// GetPermissionsForUser returns the union of grants across the user's
	// active roles.
	GetPermissionsForUser(ctx context.Context, userID string) (domain.PermissionSet, error)
	// ListUserRoles returns the user's assignments that are still in force.
	ListUserRoles(ctx context.Context, userID string) ([]domain.UserRole, error)
	// GetActiveSubscription returns the subscription with status active and an
	// end in the future, nil when there is none, or
	// domain.ErrMultipleActiveSubscriptions when the invariant is broken.
	GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error)

	GetRole(ctx context.Context, roleID string) (*domain.Role, error)
	FindRoleByName(ctx context.Context, name string) (*domain.Role, error)
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetPermission(ctx context.Context, permissionID string) (*domain.Permission, error)
	FindPermission(ctx context.Context, key domain.PermissionKey) (*domain.Permission, error)
	ListPermissions(ctx context.Context) ([]domain.Permission, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)
}

// RBACWriter is the mutation side of the RBAC store. Link mutations are
// idempotent: granting an existing link or revoking a missing one succeeds.
type RBACWriter interface {
	CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error)
	SetRoleActive(ctx context.Context, roleID string, active bool) error
	// CreatePermission returns the existing row when the key is already present.
	CreatePermission(ctx context.Context, perm domain.Permission) (*domain.Permission, error)
	// SeedPermissions creates every missing key and returns how many were new.
	SeedPermissions(ctx context.Context, keys []domain.PermissionKey) (int, error)

	GrantPermissionToRole(ctx context.Context, roleID, permissionID string) error
	RevokePermissionFromRole(ctx context.Context, roleID, permissionID string) error
	AssignRoleToUser(ctx context.Context, assignment domain.UserRole) error
	RevokeRoleFromUser(ctx context.Context, userID, roleID string) error

	CreateSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus) (*domain.Subscription, error)
}

// RBACRepository is the full persistence contract behind the authorization
// engine. Implementations serialise concurrent writes to the same row.
type RBACRepository interface {
	RBACReader
	RBACWriter
}
