package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// failingReader is an RBACReader whose every read fails with err.
type failingReader struct {
	ports.RBACReader
	err error
}

func (r failingReader) GetPermissionsForUser(context.Context, string) (domain.PermissionSet, error) {
	return domain.PermissionSet{}, r.err
}

func (r failingReader) GetRolesForUser(context.Context, string) ([]domain.Role, error) {
	return nil, r.err
}

func (r failingReader) GetActiveSubscription(context.Context, string) (*domain.Subscription, error) {
	return nil, r.err
}

// stubSigner keeps claims in memory and hands out opaque tokens.
type stubSigner struct {
	mu     sync.Mutex
	claims map[string]domain.CredentialClaims
	err    error
}

func newStubSigner() *stubSigner {
	return &stubSigner{claims: make(map[string]domain.CredentialClaims)}
}

func (s *stubSigner) Sign(c domain.CredentialClaims) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "tok-" + c.ID
	s.claims[token] = c
	return token, nil
}

func (s *stubSigner) Verify(token string) (domain.CredentialClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[token]
	if !ok {
		return domain.CredentialClaims{}, domain.ErrInvalidCredential
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var errStoreDown = errors.New("store unavailable")

type fixture struct {
	t     *testing.T
	store *memory.Store
	authz *AuthzService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	return &fixture{t: t, store: store, authz: NewAuthzService(store, zerolog.Nop())}
}

func (f *fixture) role(name string, tag domain.SystemRole, keys ...domain.PermissionKey) domain.Role {
	f.t.Helper()
	ctx := context.Background()
	r, err := f.store.CreateRole(ctx, domain.Role{Name: name, SystemRole: tag, Active: true})
	if err != nil {
		f.t.Fatalf("create role %s: %v", name, err)
	}
	for _, k := range keys {
		p := f.permission(k)
		if err := f.store.GrantPermissionToRole(ctx, r.ID, p.ID); err != nil {
			f.t.Fatalf("grant %s to %s: %v", k, name, err)
		}
	}
	return *r
}

func (f *fixture) permission(k domain.PermissionKey) domain.Permission {
	f.t.Helper()
	p, err := f.store.CreatePermission(context.Background(), domain.Permission{Action: k.Action, Resource: k.Resource})
	if err != nil {
		f.t.Fatalf("create permission %s: %v", k, err)
	}
	return *p
}

func (f *fixture) assign(userID string, roles ...domain.Role) {
	f.t.Helper()
	for _, r := range roles {
		if err := f.store.AssignRoleToUser(context.Background(), domain.UserRole{UserID: userID, RoleID: r.ID}); err != nil {
			f.t.Fatalf("assign %s to %s: %v", r.Name, userID, err)
		}
	}
}

var (
	editContent   = domain.Key(domain.ActionEdit, domain.ResourceContent)
	viewContent   = domain.Key(domain.ActionView, domain.ResourceContent)
	deleteContent = domain.Key(domain.ActionDelete, domain.ResourceContent)
	viewReports   = domain.Key(domain.ActionView, domain.ResourceReports)
	viewFinance   = domain.Key(domain.ActionView, domain.ResourceFinancials)
)
