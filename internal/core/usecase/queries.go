package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
)

func (h *Handlers) getEffectivePermissions(ctx context.Context, q GetEffectivePermissions) (EffectivePermissions, error) {
	if q.UserID == "" {
		return EffectivePermissions{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	set, err := h.authz.Permissions(ctx, q.UserID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	return EffectivePermissions{UserID: q.UserID, Permissions: set.Permissions()}, nil
}

func (h *Handlers) checkPermission(ctx context.Context, q CheckPermission) (Decision, error) {
	if q.UserID == "" {
		return Decision{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	req := ports.Requirement{
		Permissions:      q.Permissions,
		AnyPermission:    q.AnyPermission,
		AnyRole:          q.AnyRole,
		Entitled:         q.Entitled,
		SubscriptionType: q.SubscriptionType,
	}
	if req.IsEmpty() {
		return Decision{}, fmt.Errorf("%w: at least one permission, role or subscription check is required", domain.ErrValidation)
	}
	err := h.authz.Authorize(ctx, q.UserID, req)
	switch {
	case err == nil:
		return Decision{Allowed: true}, nil
	case domain.IsDenial(err):
		return Decision{Allowed: false, Reason: err.Error()}, nil
	default:
		return Decision{}, err
	}
}

func (h *Handlers) getUserRoles(ctx context.Context, q GetUserRoles) ([]domain.Role, error) {
	if q.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	return h.store.GetRolesForUser(ctx, q.UserID)
}

// getActiveSubscription returns domain.ErrSubscriptionNotFound when the user
// has no active subscription.
func (h *Handlers) getActiveSubscription(ctx context.Context, q GetActiveSubscription) (*domain.Subscription, error) {
	if q.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	sub, err := h.store.GetActiveSubscription(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (h *Handlers) getVisibleMenu(ctx context.Context, q GetVisibleMenu) ([]domain.MenuNode, error) {
	return h.menu.VisibleMenu(ctx, q.UserID)
}

func (h *Handlers) validateCredential(ctx context.Context, q ValidateCredential) (*domain.Identity, error) {
	if q.Token == "" {
		return nil, domain.ErrInvalidCredential
	}
	return h.credentials.Validate(ctx, q.Token)
}

func (h *Handlers) issueCredential(ctx context.Context, q IssueCredential) (*domain.Credential, error) {
	if q.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	cred, err := h.credentials.Issue(ctx, q.UserID)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.Error().Err(err).Str("user_id", q.UserID).Msg("credential issue failed")
	}
	return cred, err
}
