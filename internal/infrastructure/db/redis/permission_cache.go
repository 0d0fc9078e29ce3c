package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/pkg/metrics"
)

const (
	rbacVersionKey = "access:rbac:version"
	rbacKeyPrefix  = "access:rbac"
)

// CachedRBAC decorates an RBACRepository with a Redis read-through cache for
// per-user roles and permissions.
//
// Entries are keyed by a global version. Every mutation bumps the version
// before it returns, so the next read misses and goes to the inner store. A
// failed bump is returned to the caller because stale grants would otherwise
// survive until the TTL.
//
// Role assignments can lapse without a mutation, so an entry never outlives
// the earliest assignment expiry it was computed under.
type CachedRBAC struct {
	ports.RBACRepository

	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	log    zerolog.Logger
	now    func() time.Time
}

var _ ports.RBACRepository = (*CachedRBAC)(nil)

// Option configures a CachedRBAC.
type Option func(*CachedRBAC)

// WithClock overrides the time source used to expire entries.
func WithClock(now func() time.Time) Option {
	return func(c *CachedRBAC) { c.now = now }
}

// cacheEntry is the stored form. ValidUntil is the earliest assignment expiry
// seen when the entry was filled.
type cacheEntry struct {
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	Value      json.RawMessage `json:"value"`
}

func NewCachedRBAC(inner ports.RBACRepository, client *redis.Client, ttl time.Duration, log zerolog.Logger, opts ...Option) *CachedRBAC {
	c := &CachedRBAC{
		RBACRepository: inner,
		client:         client,
		ttl:            ttl,
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedRBAC) GetPermissionsForUser(ctx context.Context, userID string) (domain.PermissionSet, error) {
	var perms []domain.Permission
	err := c.readThrough(ctx, "permissions", userID, &perms, func(ctx context.Context) (any, error) {
		set, err := c.RBACRepository.GetPermissionsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return set.Permissions(), nil
	})
	if err != nil {
		return domain.PermissionSet{}, err
	}
	return domain.NewPermissionSet(perms...), nil
}

func (c *CachedRBAC) GetRolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	var roles []domain.Role
	err := c.readThrough(ctx, "roles", userID, &roles, func(ctx context.Context) (any, error) {
		return c.RBACRepository.GetRolesForUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// readThrough serves dest from Redis or fills it from load. Redis failures
// degrade to the inner store. Concurrent misses for the same key share one
// load.
func (c *CachedRBAC) readThrough(ctx context.Context, kind, userID string, dest any, load func(context.Context) (any, error)) error {
	key, err := c.buildKey(ctx, kind, userID)
	if err != nil {
		c.log.Warn().Err(err).Str("cache", kind).Msg("cache version unavailable, reading store")
		return c.fill(ctx, load, dest)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if c.serve(key, payload, dest) {
			metrics.CacheLookupsTotal.WithLabelValues(kind, "hit").Inc()
			return nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, reading store")
	}
	metrics.CacheLookupsTotal.WithLabelValues(kind, "miss").Inc()

	raw, err, _ := c.group.Do(key, func() (any, error) {
		assignments, err := c.RBACRepository.ListUserRoles(ctx, userID)
		if err != nil {
			return nil, err
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}

		now := c.now()
		entry := cacheEntry{ValidUntil: domain.NextExpiry(assignments, now), Value: raw}
		ttl := c.ttl
		if entry.ValidUntil != nil {
			if left := entry.ValidUntil.Sub(now); left < ttl {
				ttl = left
			}
		}
		if encoded, encErr := json.Marshal(entry); encErr == nil {
			if setErr := c.client.Set(ctx, key, encoded, ttl).Err(); setErr != nil {
				c.log.Warn().Err(setErr).Str("key", key).Msg("cache write failed")
			}
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// serve decodes a stored entry into dest. Undecodable entries and entries
// past an assignment expiry are misses.
func (c *CachedRBAC) serve(key string, payload []byte, dest any) bool {
	var entry cacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		c.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	if entry.ValidUntil != nil && !c.now().Before(*entry.ValidUntil) {
		return false
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		c.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

func (c *CachedRBAC) fill(ctx context.Context, load func(context.Context) (any, error), dest any) error {
	value, err := load(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Version returns the current cache generation, initialising it when missing.
func (c *CachedRBAC) Version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, rbacVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, rbacVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, rbacVersionKey).Int64()
	}
	return ver, err
}

func (c *CachedRBAC) buildKey(ctx context.Context, kind, userID string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s:%s", rbacKeyPrefix, ver, kind, userID), nil
}

// Bump invalidates every cached entry.
func (c *CachedRBAC) Bump(ctx context.Context) error {
	if err := c.client.Incr(ctx, rbacVersionKey).Err(); err != nil {
		return fmt.Errorf("rbac cache bump: %w", err)
	}
	return nil
}

// after bumps the version once the mutation has been attempted. The bump runs
// on failure too, since a failed write may still have applied partially.
func (c *CachedRBAC) after(ctx context.Context, err error) error {
	if bumpErr := c.Bump(context.WithoutCancel(ctx)); bumpErr != nil {
		return errors.Join(err, bumpErr)
	}
	return err
}

func (c *CachedRBAC) CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	out, err := c.RBACRepository.CreateRole(ctx, role)
	return out, c.after(ctx, err)
}

func (c *CachedRBAC) SetRoleActive(ctx context.Context, roleID string, active bool) error {
	return c.after(ctx, c.RBACRepository.SetRoleActive(ctx, roleID, active))
}

func (c *CachedRBAC) CreatePermission(ctx context.Context, perm domain.Permission) (*domain.Permission, error) {
	out, err := c.RBACRepository.CreatePermission(ctx, perm)
	return out, c.after(ctx, err)
}

func (c *CachedRBAC) SeedPermissions(ctx context.Context, keys []domain.PermissionKey) (int, error) {
	n, err := c.RBACRepository.SeedPermissions(ctx, keys)
	return n, c.after(ctx, err)
}

func (c *CachedRBAC) GrantPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	return c.after(ctx, c.RBACRepository.GrantPermissionToRole(ctx, roleID, permissionID))
}

func (c *CachedRBAC) RevokePermissionFromRole(ctx context.Context, roleID, permissionID string) error {
	return c.after(ctx, c.RBACRepository.RevokePermissionFromRole(ctx, roleID, permissionID))
}

func (c *CachedRBAC) AssignRoleToUser(ctx context.Context, assignment domain.UserRole) error {
	return c.after(ctx, c.RBACRepository.AssignRoleToUser(ctx, assignment))
}

func (c *CachedRBAC) RevokeRoleFromUser(ctx context.Context, userID, roleID string) error {
	return c.after(ctx, c.RBACRepository.RevokeRoleFromUser(ctx, userID, roleID))
}

func (c *CachedRBAC) CreateSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	out, err := c.RBACRepository.CreateSubscription(ctx, sub)
	return out, c.after(ctx, err)
}

func (c *CachedRBAC) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus) (*domain.Subscription, error) {
	out, err := c.RBACRepository.UpdateSubscriptionStatus(ctx, subscriptionID, status)
	return out, c.after(ctx, err)
}
