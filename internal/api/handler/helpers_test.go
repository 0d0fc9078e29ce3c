package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/api/middleware"
	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/service"
	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/dispatch"
	"github.com/campusgate/access-core/internal/infrastructure/db/memory"
)

type mapSigner struct {
	claims map[string]domain.CredentialClaims
}

func (s *mapSigner) Sign(c domain.CredentialClaims) (string, error) {
	s.claims[c.ID] = c
	return c.ID, nil
}

func (s *mapSigner) Verify(token string) (domain.CredentialClaims, error) {
	c, ok := s.claims[token]
	if !ok {
		return domain.CredentialClaims{}, domain.ErrInvalidCredential
	}
	return c, nil
}

var menuRows = []domain.MenuNode{
	{ID: "home", Title: "Home", Route: "/", SortOrder: 1},
	{ID: "admin", Title: "Admin", SortOrder: 2,
		RequiredPermissions: []domain.PermissionKey{domain.Key(domain.ActionManage, domain.ResourceRoles)}},
	{ID: "admin.roles", ParentID: "admin", Title: "Roles", Route: "/admin/roles", SortOrder: 1,
		RequiredPermissions: []domain.PermissionKey{domain.Key(domain.ActionManage, domain.ResourceRoles)}},
}

// stack is a full in-memory use case stack behind a dispatcher.
type stack struct {
	e     *echo.Echo
	store *memory.Store
	d     *dispatch.Dispatcher
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	authz := service.NewAuthzService(store, log)
	creds := service.NewCredentialService(store, &mapSigner{claims: map[string]domain.CredentialClaims{}}, time.Hour, log)
	menu := service.NewMenuService(memory.NewMenuSource(menuRows), authz, log)

	reg := dispatch.NewRegistry()
	usecase.NewHandlers(store, authz, creds, menu, log).Register(reg)
	d, err := reg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(dispatch.Command(ctx, d, usecase.CreateRole{ActorID: domain.SystemActor, ID: "role-admin", Name: "Admin", SystemRole: domain.SystemRoleAdmin}))
	for _, k := range []domain.PermissionKey{
		domain.Key(domain.ActionManage, domain.ResourceRoles),
		domain.Key(domain.ActionManage, domain.ResourcePermissions),
		domain.Key(domain.ActionManage, domain.ResourceSubscriptions),
		domain.Key(domain.ActionView, domain.ResourceUsers),
	} {
		must(dispatch.Command(ctx, d, usecase.GrantPermission{ActorID: domain.SystemActor, RoleID: "role-admin", Key: k}))
	}
	must(dispatch.Command(ctx, d, usecase.AssignRole{ActorID: domain.SystemActor, UserID: "admin", RoleID: "role-admin"}))

	return &stack{e: newEcho(), store: store, d: d}
}

// as builds a JSON request context authenticated as userID.
func (s *stack) as(userID, method, path, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	if userID != "" {
		middleware.SetIdentity(c, domain.Identity{UserID: userID})
	}
	if len(params) > 0 {
		names := make([]string, 0, len(params)/2)
		values := make([]string, 0, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}
