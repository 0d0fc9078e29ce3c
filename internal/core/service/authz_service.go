package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/pkg/metrics"
)

const (
	checkPermission  = "permission"
	checkRole        = "role"
	checkEntitlement = "entitlement"
	checkComposite   = "composite"
	checkPermSet     = "permission_set"
)

// AuthzService is the authorization engine. It holds no decision state: every
// call reads the store again, so a revoked grant is denied on the next check.
type AuthzService struct {
	store ports.RBACReader
	log   zerolog.Logger
}

// NewAuthzService returns an engine reading from store.
func NewAuthzService(store ports.RBACReader, log zerolog.Logger) *AuthzService {
	return &AuthzService{store: store, log: log}
}

var _ ports.Authorizer = (*AuthzService)(nil)

func (s *AuthzService) HasPermission(ctx context.Context, userID string, key domain.PermissionKey) (bool, error) {
	start := time.Now()
	set, err := s.permissions(ctx, userID)
	if err != nil {
		return false, s.indeterminate(checkPermission, userID, start, err)
	}
	granted := set.Has(key)
	s.record(checkPermission, granted, start)
	return granted, nil
}

func (s *AuthzService) HasAnyRole(ctx context.Context, userID string, roles ...domain.SystemRole) (bool, error) {
	start := time.Now()
	identity, err := s.roleIdentity(ctx, userID)
	if err != nil {
		return false, s.indeterminate(checkRole, userID, start, err)
	}
	granted := identity.HasSystemRole(roles...)
	s.record(checkRole, granted, start)
	return granted, nil
}

func (s *AuthzService) HasAnyRoleNamed(ctx context.Context, userID string, names ...string) (bool, error) {
	start := time.Now()
	identity, err := s.roleIdentity(ctx, userID)
	if err != nil {
		return false, s.indeterminate(checkRole, userID, start, err)
	}
	granted := identity.HasRoleNamed(names...)
	s.record(checkRole, granted, start)
	return granted, nil
}

// IsEntitled reports whether the user holds an active subscription, narrowed
// to one plan when required is set.
func (s *AuthzService) IsEntitled(ctx context.Context, userID string, required *domain.SubscriptionType) (bool, error) {
	start := time.Now()
	sub, err := s.activeSubscription(ctx, userID)
	if err != nil {
		return false, s.indeterminate(checkEntitlement, userID, start, err)
	}
	granted := entitled(sub, required)
	s.record(checkEntitlement, granted, start)
	return granted, nil
}

// Permissions returns the user's effective permission set.
func (s *AuthzService) Permissions(ctx context.Context, userID string) (domain.PermissionSet, error) {
	start := time.Now()
	set, err := s.permissions(ctx, userID)
	if err != nil {
		return domain.PermissionSet{}, s.indeterminate(checkPermSet, userID, start, err)
	}
	return set, nil
}

// Authorize evaluates a composite requirement. The store reads for each leg
// run concurrently; the first failing leg decides the denial.
func (s *AuthzService) Authorize(ctx context.Context, userID string, req ports.Requirement) error {
	start := time.Now()

	var (
		set      domain.PermissionSet
		identity domain.Identity
		sub      *domain.Subscription
	)
	needPerms := len(req.Permissions) > 0 || len(req.AnyPermission) > 0
	needRoles := len(req.AnyRole) > 0
	needSub := req.Entitled || req.SubscriptionType != nil

	g, gctx := errgroup.WithContext(ctx)
	if needPerms {
		g.Go(func() error {
			var err error
			set, err = s.permissions(gctx, userID)
			return err
		})
	}
	if needRoles {
		g.Go(func() error {
			var err error
			identity, err = s.roleIdentity(gctx, userID)
			return err
		})
	}
	if needSub {
		g.Go(func() error {
			var err error
			sub, err = s.activeSubscription(gctx, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return s.indeterminate(checkComposite, userID, start, err)
	}
	if err := ctx.Err(); err != nil {
		return s.indeterminate(checkComposite, userID, start, err)
	}

	var denial error
	switch {
	case needPerms && !set.HasAll(req.Permissions...):
		denial = fmt.Errorf("%w: requires all of %s", domain.ErrPermissionDenied, joinKeys(req.Permissions))
	case len(req.AnyPermission) > 0 && !set.HasAny(req.AnyPermission...):
		denial = fmt.Errorf("%w: requires one of %s", domain.ErrPermissionDenied, joinKeys(req.AnyPermission))
	case needRoles && !identity.HasSystemRole(req.AnyRole...):
		denial = fmt.Errorf("%w: requires one of roles %s", domain.ErrRoleDenied, joinRoles(req.AnyRole))
	case needSub && !entitled(sub, req.SubscriptionType):
		denial = domain.ErrNotEntitled
		if req.SubscriptionType != nil {
			denial = fmt.Errorf("%w: requires %s subscription", domain.ErrNotEntitled, *req.SubscriptionType)
		}
	}

	s.record(checkComposite, denial == nil, start)
	if denial != nil {
		s.log.Debug().Str("user_id", userID).Err(denial).Msg("authorization denied")
	}
	return denial
}

func (s *AuthzService) permissions(ctx context.Context, userID string) (domain.PermissionSet, error) {
	set, err := s.store.GetPermissionsForUser(ctx, userID)
	if err != nil {
		return domain.PermissionSet{}, fmt.Errorf("load permissions: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.PermissionSet{}, err
	}
	return set, nil
}

func (s *AuthzService) roleIdentity(ctx context.Context, userID string) (domain.Identity, error) {
	roles, err := s.store.GetRolesForUser(ctx, userID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load roles: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	identity := domain.Identity{UserID: userID, Roles: make([]domain.RoleClaim, 0, len(roles))}
	for _, r := range roles {
		identity.Roles = append(identity.Roles, r.Claim())
	}
	return identity, nil
}

func (s *AuthzService) activeSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.store.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sub, nil
}

// indeterminate logs and counts a failed check and returns the fail-closed
// error.
func (s *AuthzService) indeterminate(check, userID string, start time.Time, cause error) error {
	metrics.DecisionsTotal.WithLabelValues(check, "indeterminate").Inc()
	metrics.DecisionDuration.WithLabelValues(check).Observe(time.Since(start).Seconds())

	level := zerolog.WarnLevel
	if errors.Is(cause, domain.ErrMultipleActiveSubscriptions) {
		level = zerolog.ErrorLevel
	}
	s.log.WithLevel(level).Err(cause).Str("check", check).Str("user_id", userID).Msg("authorization indeterminate, denying")

	return fmt.Errorf("%w: %s check for user %s: %w", domain.ErrDecisionIndeterminate, check, userID, cause)
}

func (s *AuthzService) record(check string, granted bool, start time.Time) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	metrics.DecisionsTotal.WithLabelValues(check, outcome).Inc()
	metrics.DecisionDuration.WithLabelValues(check).Observe(time.Since(start).Seconds())
}

func entitled(sub *domain.Subscription, required *domain.SubscriptionType) bool {
	if sub == nil {
		return false
	}
	if required == nil {
		return true
	}
	return strings.EqualFold(string(sub.Type), string(*required))
}

func joinKeys(keys []domain.PermissionKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

func joinRoles(roles []domain.SystemRole) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
