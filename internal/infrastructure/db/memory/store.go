// Package memory provides an in-process RBAC store for development mode and
// tests. All state is guarded by a single RWMutex; no call blocks on I/O while
// holding it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusgate/access-core/internal/core/domain"
)

type linkKey struct{ a, b string }

// Store implements ports.RBACRepository.
type Store struct {
	mu sync.RWMutex

	roles         map[string]domain.Role
	permissions   map[string]domain.Permission
	permByKey     map[domain.PermissionKey]string
	grants        map[linkKey]domain.RolePermission // role id, permission id
	assignments   map[linkKey]domain.UserRole       // user id, role id
	subscriptions map[string]domain.Subscription

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		roles:         make(map[string]domain.Role),
		permissions:   make(map[string]domain.Permission),
		permByKey:     make(map[domain.PermissionKey]string),
		grants:        make(map[linkKey]domain.RolePermission),
		assignments:   make(map[linkKey]domain.UserRole),
		subscriptions: make(map[string]domain.Subscription),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *Store) GetRolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rolesForUserLocked(userID), nil
}

func (s *Store) rolesForUserLocked(userID string) []domain.Role {
	now := s.now()
	var out []domain.Role
	for k, ur := range s.assignments {
		if k.a != userID || !ur.EffectiveAt(now) {
			continue
		}
		role, ok := s.roles[k.b]
		if !ok || !role.Active {
			continue
		}
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) GetPermissionsForUser(ctx context.Context, userID string) (domain.PermissionSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.PermissionSet{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := make(map[string]bool)
	for _, r := range s.rolesForUserLocked(userID) {
		held[r.ID] = true
	}
	set := domain.NewPermissionSet()
	for k := range s.grants {
		if !held[k.a] {
			continue
		}
		if p, ok := s.permissions[k.b]; ok {
			set.Add(p)
		}
	}
	return set, nil
}

func (s *Store) ListUserRoles(ctx context.Context, userID string) ([]domain.UserRole, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []domain.UserRole
	for k, ur := range s.assignments {
		if k.a == userID && ur.EffectiveAt(now) {
			out = append(out, ur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	subs, err := s.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.SelectActive(subs, s.now())
}

func (s *Store) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	return &r, nil
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if strings.EqualFold(r.Name, strings.TrimSpace(name)) {
			r := r
			return &r, nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetPermission(ctx context.Context, permissionID string) (*domain.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permissionID]
	if !ok {
		return nil, domain.ErrPermissionNotFound
	}
	return &p, nil
}

func (s *Store) FindPermission(ctx context.Context, key domain.PermissionKey) (*domain.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.permByKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPermissionNotFound, key)
	}
	p := s.permissions[id]
	return &p, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := domain.NewPermissionSet()
	for _, p := range s.permissions {
		set.Add(p)
	}
	return set.Permissions(), nil
}

func (s *Store) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoleExists, role.Name)
		}
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	now := s.now()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now
	s.roles[role.ID] = role
	return &role, nil
}

func (s *Store) SetRoleActive(ctx context.Context, roleID string, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return domain.ErrRoleNotFound
	}
	r.Active = active
	r.UpdatedAt = s.now()
	s.roles[roleID] = r
	return nil
}

func (s *Store) CreatePermission(ctx context.Context, perm domain.Permission) (*domain.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !perm.Key().Valid() {
		return nil, fmt.Errorf("%w: permission %s", domain.ErrValidation, perm.Key())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.createPermissionLocked(perm)
	return &p, nil
}

func (s *Store) createPermissionLocked(perm domain.Permission) domain.Permission {
	if id, ok := s.permByKey[perm.Key()]; ok {
		return s.permissions[id]
	}
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	if perm.CreatedAt.IsZero() {
		perm.CreatedAt = s.now()
	}
	s.permissions[perm.ID] = perm
	s.permByKey[perm.Key()] = perm.ID
	return perm
}

func (s *Store) SeedPermissions(ctx context.Context, keys []domain.PermissionKey) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for _, k := range keys {
		if _, ok := s.permByKey[k]; ok {
			continue
		}
		s.createPermissionLocked(domain.Permission{Action: k.Action, Resource: k.Resource})
		created++
	}
	return created, nil
}

func (s *Store) GrantPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return domain.ErrRoleNotFound
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return domain.ErrPermissionNotFound
	}
	k := linkKey{roleID, permissionID}
	if _, exists := s.grants[k]; !exists {
		s.grants[k] = domain.RolePermission{RoleID: roleID, PermissionID: permissionID, GrantedAt: s.now()}
	}
	return nil
}

func (s *Store) RevokePermissionFromRole(ctx context.Context, roleID, permissionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, linkKey{roleID, permissionID})
	return nil
}

func (s *Store) AssignRoleToUser(ctx context.Context, assignment domain.UserRole) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[assignment.RoleID]; !ok {
		return domain.ErrRoleNotFound
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = s.now()
	}
	// Re-assigning refreshes the expiry; the link itself stays unique.
	s.assignments[linkKey{assignment.UserID, assignment.RoleID}] = assignment
	return nil
}

func (s *Store) RevokeRoleFromUser(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, linkKey{userID, roleID})
	return nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.Status == domain.SubscriptionActive && s.hasActiveLocked(sub.UserID, "") {
		return nil, domain.ErrActiveSubscriptionExists
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := s.now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	s.subscriptions[sub.ID] = sub
	return &sub, nil
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	if status == domain.SubscriptionActive && s.hasActiveLocked(sub.UserID, sub.ID) {
		return nil, domain.ErrActiveSubscriptionExists
	}
	sub.Status = status
	sub.UpdatedAt = s.now()
	s.subscriptions[sub.ID] = sub
	return &sub, nil
}

// hasActiveLocked mirrors the partial unique index of the mongo store: it
// looks at status only, not at the end date.
func (s *Store) hasActiveLocked(userID, exceptID string) bool {
	for id, sub := range s.subscriptions {
		if id != exceptID && sub.UserID == userID && sub.Status == domain.SubscriptionActive {
			return true
		}
	}
	return false
}

// PutSubscription stores sub verbatim, bypassing the one-active check. It
// exists to reproduce integrity faults in tests and fixtures.
func (s *Store) PutSubscription(sub domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = sub
}
