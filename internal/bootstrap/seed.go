// Package bootstrap seeds a fresh store with the permission catalog, the
// built-in roles and the default navigation menu.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/dispatch"
)

// BuiltinRole describes a role created at startup and its initial grants.
type BuiltinRole struct {
	Name        string
	SystemRole  domain.SystemRole
	Description string
	Grants      []domain.PermissionKey
}

func keys(action domain.Action, resources ...domain.Resource) []domain.PermissionKey {
	out := make([]domain.PermissionKey, len(resources))
	for i, r := range resources {
		out[i] = domain.Key(action, r)
	}
	return out
}

func concat(groups ...[]domain.PermissionKey) []domain.PermissionKey {
	var out []domain.PermissionKey
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// BuiltinRoles returns the default role set. Super Admin holds the whole
// catalog.
func BuiltinRoles() []BuiltinRole {
	return []BuiltinRole{
		{
			Name:        "Super Admin",
			SystemRole:  domain.SystemRoleSuperAdmin,
			Description: "Full access to every resource",
			Grants:      domain.DefaultCatalog(),
		},
		{
			Name:        "Admin",
			SystemRole:  domain.SystemRoleAdmin,
			Description: "Manages users, roles and subscriptions",
			Grants: concat(
				keys(domain.ActionManage, domain.ResourceRoles, domain.ResourcePermissions, domain.ResourceSubscriptions, domain.ResourceSettings),
				keys(domain.ActionView, domain.ResourceUsers, domain.ResourceReports, domain.ResourceFinancials, domain.ResourceMenu),
				keys(domain.ActionCreate, domain.ResourceUsers),
				keys(domain.ActionEdit, domain.ResourceUsers),
			),
		},
		{
			Name:        "Teacher",
			SystemRole:  domain.SystemRoleTeacher,
			Description: "Authors courses and content",
			Grants: concat(
				keys(domain.ActionView, domain.ResourceCourses, domain.ResourceContent, domain.ResourceReports, domain.ResourceUsers),
				keys(domain.ActionCreate, domain.ResourceCourses, domain.ResourceContent),
				keys(domain.ActionEdit, domain.ResourceCourses, domain.ResourceContent),
			),
		},
		{
			Name:        "Student",
			SystemRole:  domain.SystemRoleStudent,
			Description: "Consumes courses and content",
			Grants:      keys(domain.ActionView, domain.ResourceCourses, domain.ResourceContent),
		},
		{
			Name:        "Parent",
			SystemRole:  domain.SystemRoleParent,
			Description: "Follows a student's progress",
			Grants:      keys(domain.ActionView, domain.ResourceCourses, domain.ResourceReports),
		},
	}
}

// Seed makes sure the catalog and the built-in roles exist. Role mutations go
// through the dispatcher as the system actor. Running it again is a no-op.
func Seed(ctx context.Context, store ports.RBACRepository, d *dispatch.Dispatcher, log zerolog.Logger) error {
	inserted, err := store.SeedPermissions(ctx, domain.DefaultCatalog())
	if err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}

	created := 0
	for _, b := range BuiltinRoles() {
		roleID, isNew, err := ensureRole(ctx, store, d, b)
		if err != nil {
			return err
		}
		if isNew {
			created++
		}
		for _, k := range b.Grants {
			if err := dispatch.Command(ctx, d, usecase.GrantPermission{ActorID: domain.SystemActor, RoleID: roleID, Key: k}); err != nil {
				return fmt.Errorf("grant %s to %s: %w", k, b.Name, err)
			}
		}
	}

	log.Info().Int("permissions_inserted", inserted).Int("roles_created", created).Msg("catalog seeded")
	return nil
}

func ensureRole(ctx context.Context, store ports.RBACReader, d *dispatch.Dispatcher, b BuiltinRole) (string, bool, error) {
	role, err := store.FindRoleByName(ctx, b.Name)
	if err == nil {
		return role.ID, false, nil
	}
	if !errors.Is(err, domain.ErrRoleNotFound) {
		return "", false, fmt.Errorf("find role %s: %w", b.Name, err)
	}

	id := uuid.NewString()
	if err := dispatch.Command(ctx, d, usecase.CreateRole{
		ActorID:     domain.SystemActor,
		ID:          id,
		Name:        b.Name,
		SystemRole:  b.SystemRole,
		Description: b.Description,
	}); err != nil {
		return "", false, fmt.Errorf("create role %s: %w", b.Name, err)
	}
	return id, true, nil
}

// PromoteSuperAdmin assigns the Super Admin role to userID. It is how the
// first operator account gets administrative rights.
func PromoteSuperAdmin(ctx context.Context, store ports.RBACReader, d *dispatch.Dispatcher, userID string) error {
	roles, err := store.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		if r.SystemRole == domain.SystemRoleSuperAdmin && r.Active {
			return dispatch.Command(ctx, d, usecase.AssignRole{ActorID: domain.SystemActor, UserID: userID, RoleID: r.ID})
		}
	}
	return fmt.Errorf("%w: no active super admin role", domain.ErrRoleNotFound)
}
