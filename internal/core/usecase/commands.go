package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
)

// authorizeActor checks that the caller may perform an administrative
// mutation. The system actor is trusted.
func (h *Handlers) authorizeActor(ctx context.Context, actorID string, key domain.PermissionKey) error {
	if actorID == domain.SystemActor {
		return nil
	}
	if actorID == "" {
		return fmt.Errorf("%w: missing actor", domain.ErrPermissionDenied)
	}
	return h.authz.Authorize(ctx, actorID, ports.Requirement{Permissions: []domain.PermissionKey{key}})
}

func (h *Handlers) createRole(ctx context.Context, c CreateRole) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: role name is required", domain.ErrValidation)
	}
	if err := h.authorizeActor(ctx, c.ActorID, manageRoles); err != nil {
		return err
	}
	role, err := h.store.CreateRole(ctx, domain.Role{
		ID:          c.ID,
		Name:        strings.TrimSpace(c.Name),
		SystemRole:  c.SystemRole,
		Description: c.Description,
		Active:      true,
	})
	if err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("role_id", role.ID).Str("role", role.Name).Msg("role created")
	return nil
}

func (h *Handlers) setRoleActive(ctx context.Context, c SetRoleActive) error {
	if err := h.authorizeActor(ctx, c.ActorID, manageRoles); err != nil {
		return err
	}
	if err := h.store.SetRoleActive(ctx, c.RoleID, c.Active); err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("role_id", c.RoleID).Bool("active", c.Active).Msg("role state changed")
	return nil
}

func (h *Handlers) grantPermission(ctx context.Context, c GrantPermission) error {
	if !c.Key.Valid() {
		return fmt.Errorf("%w: invalid permission %q", domain.ErrValidation, c.Key)
	}
	if err := h.authorizeActor(ctx, c.ActorID, managePermissions); err != nil {
		return err
	}
	perm, err := h.store.CreatePermission(ctx, domain.Permission{Action: c.Key.Action, Resource: c.Key.Resource})
	if err != nil {
		return err
	}
	if err := h.store.GrantPermissionToRole(ctx, c.RoleID, perm.ID); err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("role_id", c.RoleID).Str("permission", c.Key.String()).Msg("permission granted")
	return nil
}

func (h *Handlers) revokePermission(ctx context.Context, c RevokePermission) error {
	if err := h.authorizeActor(ctx, c.ActorID, managePermissions); err != nil {
		return err
	}
	perm, err := h.store.FindPermission(ctx, c.Key)
	if errors.Is(err, domain.ErrPermissionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.store.RevokePermissionFromRole(ctx, c.RoleID, perm.ID); err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("role_id", c.RoleID).Str("permission", c.Key.String()).Msg("permission revoked")
	return nil
}

func (h *Handlers) assignRole(ctx context.Context, c AssignRole) error {
	if c.UserID == "" || c.RoleID == "" {
		return fmt.Errorf("%w: user id and role id are required", domain.ErrValidation)
	}
	if err := h.authorizeActor(ctx, c.ActorID, manageRoles); err != nil {
		return err
	}
	now := h.now()
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return fmt.Errorf("%w: expiry must lie in the future", domain.ErrValidation)
	}
	if err := h.store.AssignRoleToUser(ctx, domain.UserRole{
		UserID:     c.UserID,
		RoleID:     c.RoleID,
		AssignedBy: c.ActorID,
		AssignedAt: now,
		ExpiresAt:  c.ExpiresAt,
	}); err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("user_id", c.UserID).Str("role_id", c.RoleID).Msg("role assigned")
	return nil
}

func (h *Handlers) revokeRole(ctx context.Context, c RevokeRole) error {
	if err := h.authorizeActor(ctx, c.ActorID, manageRoles); err != nil {
		return err
	}
	if err := h.store.RevokeRoleFromUser(ctx, c.UserID, c.RoleID); err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("user_id", c.UserID).Str("role_id", c.RoleID).Msg("role revoked")
	return nil
}

func (h *Handlers) createSubscription(ctx context.Context, c CreateSubscription) error {
	if c.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, c.Status)
	}
	if !c.EndAt.After(c.StartAt) {
		return fmt.Errorf("%w: subscription must end after it starts", domain.ErrValidation)
	}
	if err := h.authorizeActor(ctx, c.ActorID, manageSubscriptions); err != nil {
		return err
	}

	if c.ID != "" {
		if _, err := h.store.GetSubscription(ctx, c.ID); err == nil {
			h.log.Debug().Str("subscription_id", c.ID).Msg("subscription already recorded")
			return nil
		} else if !errors.Is(err, domain.ErrSubscriptionNotFound) {
			return err
		}
	}
	if c.Status == domain.SubscriptionActive {
		if err := h.ensureNoActive(ctx, c.UserID, ""); err != nil {
			return err
		}
	}

	sub, err := h.store.CreateSubscription(ctx, domain.Subscription{
		ID:      c.ID,
		UserID:  c.UserID,
		Type:    c.Type,
		Status:  c.Status,
		StartAt: c.StartAt,
		EndAt:   c.EndAt,
		Amount:  c.Amount,
	})
	if err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("user_id", c.UserID).Str("subscription_id", sub.ID).Str("status", string(sub.Status)).Msg("subscription created")
	return nil
}

func (h *Handlers) updateSubscriptionStatus(ctx context.Context, c UpdateSubscriptionStatus) error {
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, c.Status)
	}
	if err := h.authorizeActor(ctx, c.ActorID, manageSubscriptions); err != nil {
		return err
	}

	current, err := h.store.GetSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return err
	}
	if current.Status == c.Status {
		return nil
	}
	if c.Status == domain.SubscriptionActive {
		if err := h.ensureNoActive(ctx, current.UserID, current.ID); err != nil {
			return err
		}
	}

	sub, err := h.store.UpdateSubscriptionStatus(ctx, c.SubscriptionID, c.Status)
	if err != nil {
		return err
	}
	h.log.Info().Str("actor", c.ActorID).Str("subscription_id", sub.ID).
		Str("from", string(current.Status)).Str("to", string(sub.Status)).Msg("subscription status changed")
	return nil
}

// ensureNoActive rejects a write that would give the user a second
// subscription in active status. The store enforces the same rule on write.
func (h *Handlers) ensureNoActive(ctx context.Context, userID, exceptID string) error {
	subs, err := h.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	for _, s := range subs {
		if s.ID != exceptID && s.Status == domain.SubscriptionActive {
			return fmt.Errorf("%w: %s", domain.ErrActiveSubscriptionExists, s.ID)
		}
	}
	return nil
}
