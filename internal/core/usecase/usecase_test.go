package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/service"
	"github.com/campusgate/access-core/internal/dispatch"
	"github.com/campusgate/access-core/internal/infrastructure/db/memory"
)

type stubSigner struct {
	claims map[string]domain.CredentialClaims
}

func (s *stubSigner) Sign(c domain.CredentialClaims) (string, error) {
	s.claims[c.ID] = c
	return c.ID, nil
}

func (s *stubSigner) Verify(token string) (domain.CredentialClaims, error) {
	c, ok := s.claims[token]
	if !ok {
		return domain.CredentialClaims{}, domain.ErrInvalidCredential
	}
	return c, nil
}

type env struct {
	store *memory.Store
	d     *dispatch.Dispatcher
	admin string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	store := memory.NewStore()
	authz := service.NewAuthzService(store, log)
	creds := service.NewCredentialService(store, &stubSigner{claims: map[string]domain.CredentialClaims{}}, time.Hour, log)
	menu := service.NewMenuService(memory.NewMenuSource(nil), authz, log)

	reg := dispatch.NewRegistry()
	NewHandlers(store, authz, creds, menu, log).Register(reg)
	d, err := reg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Bootstrap an administrator through the system actor.
	if err := dispatch.Command(ctx, d, CreateRole{ActorID: domain.SystemActor, ID: "role-admin", Name: "Admin", SystemRole: domain.SystemRoleAdmin}); err != nil {
		t.Fatalf("create admin role: %v", err)
	}
	for _, k := range []domain.PermissionKey{manageRoles, managePermissions, manageSubscriptions} {
		if err := dispatch.Command(ctx, d, GrantPermission{ActorID: domain.SystemActor, RoleID: "role-admin", Key: k}); err != nil {
			t.Fatalf("grant %s: %v", k, err)
		}
	}
	if err := dispatch.Command(ctx, d, AssignRole{ActorID: domain.SystemActor, UserID: "admin", RoleID: "role-admin"}); err != nil {
		t.Fatalf("assign admin: %v", err)
	}
	return &env{store: store, d: d, admin: "admin"}
}

func TestRegister_EveryUseCaseIsRouted(t *testing.T) {
	e := newEnv(t)
	if e.d.Len() != 15 {
		t.Fatalf("expected 15 routed request types, got %d", e.d.Len())
	}
	if !dispatch.Has[IssueCredential](e.d) || !dispatch.Has[UpdateSubscriptionStatus](e.d) {
		t.Fatalf("expected credential and subscription use cases to be routed")
	}
}

func TestAdminFlow_GrantCheckRevoke(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if err := dispatch.Command(ctx, e.d, CreateRole{ActorID: e.admin, ID: "role-editor", Name: "Editor"}); err != nil {
		t.Fatalf("create role: %v", err)
	}
	edit := domain.Key(domain.ActionEdit, domain.ResourceContent)
	if err := dispatch.Command(ctx, e.d, GrantPermission{ActorID: e.admin, RoleID: "role-editor", Key: edit}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := dispatch.Command(ctx, e.d, AssignRole{ActorID: e.admin, UserID: "u1", RoleID: "role-editor"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	dec, err := dispatch.Query[CheckPermission, Decision](ctx, e.d, CheckPermission{UserID: "u1", Permissions: []domain.PermissionKey{edit}})
	if err != nil || !dec.Allowed {
		t.Fatalf("expected allowed, got %+v, %v", dec, err)
	}

	if err := dispatch.Command(ctx, e.d, RevokePermission{ActorID: e.admin, RoleID: "role-editor", Key: edit}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	dec, err = dispatch.Query[CheckPermission, Decision](ctx, e.d, CheckPermission{UserID: "u1", Permissions: []domain.PermissionKey{edit}})
	if err != nil || dec.Allowed || dec.Reason == "" {
		t.Fatalf("expected denial with reason, got %+v, %v", dec, err)
	}

	perms, err := dispatch.Query[GetEffectivePermissions, EffectivePermissions](ctx, e.d, GetEffectivePermissions{UserID: "u1"})
	if err != nil || len(perms.Permissions) != 0 {
		t.Fatalf("expected no permissions, got %+v, %v", perms, err)
	}
}

func TestCheckPermission_RejectsEmptyRequirement(t *testing.T) {
	e := newEnv(t)

	_, err := dispatch.Query[CheckPermission, Decision](context.Background(), e.d, CheckPermission{UserID: "u1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAdminCommands_RequireManagePermission(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	err := dispatch.Command(ctx, e.d, CreateRole{ActorID: "mallory", Name: "Shadow Admin", SystemRole: domain.SystemRoleAdmin})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	err = dispatch.Command(ctx, e.d, AssignRole{UserID: "mallory", RoleID: "role-admin"})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("missing actor must be denied, got %v", err)
	}
}

func TestSubscriptions_OneActivePerUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	start := time.Now().UTC().Add(-time.Hour)
	end := start.Add(30 * 24 * time.Hour)

	create := CreateSubscription{ActorID: e.admin, ID: "sub-1", UserID: "u1", Type: domain.SubscriptionBasic, Status: domain.SubscriptionActive, StartAt: start, EndAt: end}
	if err := dispatch.Command(ctx, e.d, create); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := dispatch.Command(ctx, e.d, create); err != nil {
		t.Fatalf("replay must be a no-op, got %v", err)
	}

	second := create
	second.ID = "sub-2"
	if err := dispatch.Command(ctx, e.d, second); !errors.Is(err, domain.ErrActiveSubscriptionExists) {
		t.Fatalf("expected ErrActiveSubscriptionExists, got %v", err)
	}

	if err := dispatch.Command(ctx, e.d, UpdateSubscriptionStatus{ActorID: domain.SystemActor, SubscriptionID: "sub-1", Status: domain.SubscriptionCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := dispatch.Query[GetActiveSubscription, *domain.Subscription](ctx, e.d, GetActiveSubscription{UserID: "u1"}); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected no active subscription, got %v", err)
	}

	if err := dispatch.Command(ctx, e.d, second); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
	sub, err := dispatch.Query[GetActiveSubscription, *domain.Subscription](ctx, e.d, GetActiveSubscription{UserID: "u1"})
	if err != nil || sub.ID != "sub-2" {
		t.Fatalf("expected sub-2 active, got %+v, %v", sub, err)
	}
}

func TestCredential_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	cred, err := dispatch.Query[IssueCredential, *domain.Credential](ctx, e.d, IssueCredential{UserID: e.admin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := dispatch.Query[ValidateCredential, *domain.Identity](ctx, e.d, ValidateCredential{Token: cred.Token})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !id.HasSystemRole(domain.SystemRoleAdmin) {
		t.Fatalf("expected admin role in credential, got %+v", id.Roles)
	}

	roles, err := dispatch.Query[GetUserRoles, []domain.Role](ctx, e.d, GetUserRoles{UserID: e.admin})
	if err != nil || len(roles) != 1 {
		t.Fatalf("expected one role, got %+v, %v", roles, err)
	}
}

func TestAssignRole_RejectsPastExpiry(t *testing.T) {
	e := newEnv(t)
	past := time.Now().Add(-time.Minute)
	err := dispatch.Command(context.Background(), e.d, AssignRole{ActorID: e.admin, UserID: "u1", RoleID: "role-admin", ExpiresAt: &past})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
